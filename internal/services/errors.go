// Package services holds the payroll approval workflow: the approval state
// machine, the warning/archive scheduler, batch import, the announcement
// poller and the inbound event loop. This file centralizes the service-level
// error values so callers can check them with errors.Is.
//
// Translation into recipient texts or HTTP status codes happens in the
// state machine and the handler layer respectively.
package services

import "errors"

var (
	// ErrRecordGone means the record named by an action no longer exists
	// (already archived) or belongs to another recipient.
	ErrRecordGone = errors.New("record not found")

	// ErrInboxFull is returned by Inbox.Enqueue when the event queue is at
	// capacity. The webhook answers 503 so the platform redelivers.
	ErrInboxFull = errors.New("inbox full")

	// ErrEmptyBatch is returned when an import names no batch file or
	// carries no rows.
	ErrEmptyBatch = errors.New("batch is empty")
)
