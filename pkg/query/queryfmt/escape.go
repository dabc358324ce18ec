// Copyright 2024-2026 Aiku AI

// Package queryfmt converts values between their plain form and the escaped
// form used on the ServerQuery wire.
package queryfmt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEscape is returned by Unescape for a backslash that does not start
// a known escape sequence.
var ErrInvalidEscape = errors.New("invalid escape sequence")

// escapes maps each plain character to the letter following the backslash.
// The server has no escape for ';' and reads it literally, so it is sent as is.
var escapes = map[byte]byte{
	'\\': '\\',
	'/':  '/',
	' ':  's',
	'|':  'p',
	'\a': 'a',
	'\b': 'b',
	'\f': 'f',
	'\n': 'n',
	'\r': 'r',
	'\t': 't',
	'\v': 'v',
}

var unescapes = func() map[byte]byte {
	m := make(map[byte]byte, len(escapes))
	for plain, esc := range escapes {
		m[esc] = plain
	}
	return m
}()

// Escape returns s in wire form.
func Escape(s string) string {
	if !needsEscape(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if esc, ok := escapes[s[i]]; ok {
			b.WriteByte('\\')
			b.WriteByte(esc)
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Unescape reverses Escape. A trailing backslash or an unknown sequence is an
// error rather than being passed through, so that Unescape(Escape(s)) == s is
// the only accepted round trip.
func Unescape(s string) (string, error) {
	if strings.IndexByte(s, '\\') < 0 {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("%w: trailing backslash", ErrInvalidEscape)
		}
		i++
		plain, ok := unescapes[s[i]]
		if !ok {
			return "", fmt.Errorf("%w: \\%c", ErrInvalidEscape, s[i])
		}
		b.WriteByte(plain)
	}
	return b.String(), nil
}

func needsEscape(s string) bool {
	for i := 0; i < len(s); i++ {
		if _, ok := escapes[s[i]]; ok {
			return true
		}
	}
	return false
}
