// Copyright 2024-2026 Aiku AI

package query

import "slices"

// Answer is the server's reply to one request: zero or more data rows followed
// by the error block.
type Answer struct {
	request *Request
	rows    []*Properties
	status  QueryError
}

// NewAnswer assembles an answer. It is used by the connection and by fakes.
func NewAnswer(req *Request, rows []*Properties, status QueryError) *Answer {
	return &Answer{request: req, rows: slices.Clone(rows), status: status}
}

// Request returns the request this answer belongs to.
func (a *Answer) Request() *Request { return a.request }

// Rows returns the data rows. Chained answers yield one row per entity.
func (a *Answer) Rows() []*Properties { return slices.Clone(a.rows) }

// First returns the first data row, or an empty set.
func (a *Answer) First() *Properties {
	if len(a.rows) == 0 {
		return NewProperties()
	}
	return a.rows[0]
}

// OK returns true if the server reported success.
func (a *Answer) OK() bool { return a.status.OK() }

// Empty returns true for a successful or "empty result set" answer without rows.
func (a *Answer) Empty() bool {
	return len(a.rows) == 0 && (a.status.OK() || a.status.ID == ErrIDDatabaseEmptyResult)
}

// Status returns the error block.
func (a *Answer) Status() QueryError { return a.status }

// Err returns the error block as error, or nil on success.
func (a *Answer) Err() error {
	if a.status.OK() {
		return nil
	}
	status := a.status
	return &status
}
