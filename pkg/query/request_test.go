// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package query

import "testing"

func TestRequestEncode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		req  *Request
		want string
	}{
		{
			name: "bare command",
			req:  NewRequest("whoami"),
			want: "whoami",
		},
		{
			name: "escaped value",
			req:  NewRequest("clientupdate").Set("client_nickname", "Jeak Bot|1"),
			want: `clientupdate client_nickname=Jeak\sBot\p1`,
		},
		{
			name: "chain",
			req:  NewRequest("clientmove").Set("cid", 5).Set("clid", 12).NewChain().Set("clid", 13),
			want: "clientmove cid=5 clid=12|clid=13",
		},
		{
			name: "options",
			req:  NewRequest("clientlist").Option("uid").Option("-away"),
			want: "clientlist -uid -away",
		},
		{
			name: "bool and int64",
			req:  NewRequest("channeledit").Set("cid", int64(7)).Set("channel_flag_permanent", true),
			want: "channeledit cid=7 channel_flag_permanent=1",
		},
		{
			name: "empty group skipped",
			req:  NewRequest("use").NewChain().Set("sid", 1),
			want: "use sid=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.req.Encode(); got != tt.want {
				t.Errorf("Encode: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestStringMasksPasswords(t *testing.T) {
	t.Parallel()
	req := NewRequest("login").Set("client_login_name", "serveradmin").Set("client_login_password", "hunter2")
	want := "login client_login_name=serveradmin client_login_password=***"
	if got := req.String(); got != want {
		t.Errorf("String: got %q, want %q", got, want)
	}
	if got := req.Encode(); got == want {
		t.Error("Encode must not mask the password")
	}
}

func TestRequestAccessors(t *testing.T) {
	t.Parallel()
	req := NewRequest("clientkick").Set("clid", 1).NewChain().Set("clid", 2).Option("x")
	if req.Command() != "clientkick" {
		t.Errorf("command: got %q", req.Command())
	}
	if n := len(req.Chain()); n != 2 {
		t.Errorf("chain length: got %d, want 2", n)
	}
	if opts := req.Options(); len(opts) != 1 || opts[0] != "x" {
		t.Errorf("options: got %v", opts)
	}
}

func TestRequestFinish(t *testing.T) {
	t.Parallel()
	NewRequest("whoami").Finish(NewAnswer(nil, nil, QueryError{}))

	var got *Answer
	req := NewRequest("whoami").OnDone(func(a *Answer) { got = a })
	answer := NewAnswer(req, nil, QueryError{})
	req.Finish(answer)
	if got != answer {
		t.Errorf("OnDone: got %v, want the finished answer", got)
	}
}
