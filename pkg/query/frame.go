// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package query

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/aiku/ts3query/pkg/query/queryfmt"
)

// FrameKind distinguishes the three line shapes sent by the server.
type FrameKind int

const (
	// FrameData is a line of answer data: property groups without caption.
	FrameData FrameKind = iota
	// FrameNotification is a caption followed by property groups.
	FrameNotification
	// FrameError is the error block terminating every answer.
	FrameError
)

func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "data"
	case FrameNotification:
		return "notification"
	case FrameError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	errorCaption      = "error"
	notifyPrefix      = "notify"
	chainSeparator    = "|"
	propertySeparator = " "
)

// Frame is one parsed server line. Frames are immutable once parsed.
type Frame struct {
	kind    FrameKind
	caption string
	links   []*Properties
	qerr    *QueryError
	raw     string
}

// Kind returns the shape of the line.
func (f *Frame) Kind() FrameKind { return f.kind }

// Caption returns the lower-cased notification caption, or "" for answers.
func (f *Frame) Caption() string { return f.caption }

// Raw returns the line the frame was parsed from.
func (f *Frame) Raw() string { return f.raw }

// Error returns the error block of a FrameError, or nil.
func (f *Frame) Error() *QueryError {
	if f.qerr == nil {
		return nil
	}
	qerr := *f.qerr
	return &qerr
}

// Links returns the pipe-separated property groups of the frame. A frame
// always has at least one link.
func (f *Frame) Links() []*Properties {
	return slices.Clone(f.links)
}

// Properties returns the first property group.
func (f *Frame) Properties() *Properties {
	return f.links[0]
}

// Hash returns a digest of the frame's properties across all links. The
// caption is not part of the digest. Values are hashed in escaped form so
// that separators inside a value cannot shift key boundaries.
func (f *Frame) Hash() uint64 {
	d := xxhash.New()
	for i, link := range f.links {
		if i > 0 {
			_, _ = d.WriteString(chainSeparator)
		}
		for _, k := range link.keys {
			_, _ = d.WriteString(k)
			_, _ = d.WriteString("=")
			_, _ = d.WriteString(queryfmt.Escape(link.values[k]))
			_, _ = d.WriteString(propertySeparator)
		}
	}
	return d.Sum64()
}

// ParseFrame parses a single server line. Leading and trailing line
// terminators are ignored.
func ParseFrame(line string) (*Frame, error) {
	line = trimLine(line)
	if line == "" {
		return nil, newParseError(line, "empty line", nil)
	}

	rawLinks := strings.Split(line, chainSeparator)
	first := splitTokens(rawLinks[0])
	if len(first) == 0 {
		return nil, newParseError(line, "missing leading token", nil)
	}

	frame := &Frame{raw: line, kind: FrameData}
	head := first[0]
	if !strings.Contains(head, "=") {
		lower := strings.ToLower(head)
		switch {
		case lower == errorCaption:
			frame.kind = FrameError
			first = first[1:]
		case strings.HasPrefix(lower, notifyPrefix):
			frame.kind = FrameNotification
			frame.caption = lower
			first = first[1:]
		}
	}

	link, err := parseLink(first)
	if err != nil {
		return nil, newParseError(line, "invalid property", err)
	}
	frame.links = append(frame.links, link)
	for _, raw := range rawLinks[1:] {
		link, err = parseLink(splitTokens(raw))
		if err != nil {
			return nil, newParseError(line, "invalid property", err)
		}
		frame.links = append(frame.links, link)
	}

	if frame.kind == FrameError {
		if len(frame.links) != 1 {
			return nil, newParseError(line, "chained error block", nil)
		}
		qerr, err := parseErrorBlock(frame.links[0])
		if err != nil {
			return nil, newParseError(line, "invalid error block", err)
		}
		frame.qerr = qerr
	}
	return frame, nil
}

func parseLink(tokens []string) (*Properties, error) {
	props := NewProperties()
	for _, tok := range tokens {
		key, value, hasValue := strings.Cut(tok, "=")
		if key == "" {
			return nil, &ParseError{Line: tok, Reason: "empty key"}
		}
		if !hasValue {
			props.set(key, "")
			continue
		}
		unescaped, err := queryfmt.Unescape(value)
		if err != nil {
			return nil, err
		}
		props.set(key, unescaped)
	}
	return props, nil
}

func parseErrorBlock(props *Properties) (*QueryError, error) {
	rawID, ok := props.Get("id")
	if !ok {
		return nil, &ParseError{Reason: "missing id"}
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return nil, err
	}
	qerr := &QueryError{
		ID:           id,
		Message:      props.Value("msg"),
		ExtraMessage: props.Value("extra_msg"),
	}
	if perm, ok := props.Int("failed_permid"); ok {
		qerr.FailedPermID = perm
	}
	return qerr, nil
}

// splitTokens splits on the space delimiter only; other whitespace can occur
// unescaped inside values.
func splitTokens(s string) []string {
	parts := strings.Split(s, propertySeparator)
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

func trimLine(line string) string {
	return strings.Trim(line, "\r\n")
}
