package domain

import (
	"errors"
	"fmt"
)

// PurchaseStatus is the lifecycle state of a Purchase.
type PurchaseStatus string

const (
	StatusPending    PurchaseStatus = "pending"
	StatusProcessing PurchaseStatus = "processing"
	StatusGenerating PurchaseStatus = "generating"
	StatusCompleted  PurchaseStatus = "completed"
	StatusFailed     PurchaseStatus = "failed"
)

// ErrInvalidTransition is returned when a status change would move a purchase
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid purchase status transition")

func (s PurchaseStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusGenerating:
		return 2
	case StatusCompleted:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s PurchaseStatus) Valid() bool {
	return s == StatusFailed || s.rank() >= 0
}

// Terminal reports whether no further transitions are possible.
func (s PurchaseStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InProgress reports whether payment is confirmed but fulfillment has not finished.
func (s PurchaseStatus) InProgress() bool {
	return s == StatusProcessing || s == StatusGenerating
}

// CanTransition reports whether a purchase in state s may move to next.
// Forward skips are allowed; failed is reachable from any non-terminal state.
// A same-state "transition" is not a transition and returns false.
func (s PurchaseStatus) CanTransition(next PurchaseStatus) bool {
	if s.Terminal() || !s.Valid() || !next.Valid() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return next.rank() > s.rank()
}

// CheckTransition is CanTransition returning a wrapped ErrInvalidTransition.
func (s PurchaseStatus) CheckTransition(next PurchaseStatus) error {
	if s.CanTransition(next) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

// Progress maps a status onto the coarse percentage reported when no live
// job is available.
func (s PurchaseStatus) Progress() int {
	switch s {
	case StatusProcessing:
		return 10
	case StatusGenerating:
		return 30
	case StatusCompleted:
		return 100
	default:
		return 0
	}
}
