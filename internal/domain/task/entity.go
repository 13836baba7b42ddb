package task

import (
	"sync/atomic"
	"time"

	"finsight/pkg/errors"
)

// Status is the lifecycle state of a task
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition can happen
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Job families
const (
	FamilyReport        = "report"
	FamilyStockAnalysis = "stock_analysis"
)

// Record is an immutable snapshot of a task. Managers replace records, never mutate them.
type Record struct {
	ID              string      `json:"id"`
	Family          string      `json:"family"`
	Kind            string      `json:"kind"`
	Status          Status      `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`
	Result          interface{} `json:"result,omitempty"`
	Error           string      `json:"error,omitempty"`
	CancelRequested bool        `json:"cancel_requested"`

	seq uint64
}

// Seq is the creation sequence within the owning manager
func (r Record) Seq() uint64 { return r.seq }

// WithSeq returns a copy carrying the creation sequence
func (r Record) WithSeq(seq uint64) Record {
	r.seq = seq
	return r
}

// CancelToken is the cooperative cancellation flag handed to a job
type CancelToken struct {
	flag atomic.Bool
}

// NewCancelToken creates an unset token
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel sets the flag
func (t *CancelToken) Cancel() {
	if t != nil {
		t.flag.Store(true)
	}
}

// Cancelled reports whether the flag is set
func (t *CancelToken) Cancelled() bool {
	return t != nil && t.flag.Load()
}

// Check is a checkpoint: it returns errors.ErrCancelled once the flag is set
func (t *CancelToken) Check() error {
	if t.Cancelled() {
		return errors.ErrCancelled
	}
	return nil
}
