package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"studylog-backend/internal/aggregation"
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// UnauthorizedError means there is no current user.
type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// StoreError wraps a failed read or write against the record store. A failed
// aggregation read surfaces as this, never as an empty result.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// PartialAggregationError means one subject's range query failed during an
// all-subjects fan-out. The period's data is withheld entirely rather than
// returned incomplete.
type PartialAggregationError struct {
	SubjectID uuid.UUID
	Err       error
}

func (e *PartialAggregationError) Error() string {
	return fmt.Sprintf("aggregation incomplete, subject %s failed: %v", e.SubjectID, e.Err)
}

func (e *PartialAggregationError) Unwrap() error { return e.Err }

// storeFailure classifies an engine error into the service error kinds.
func storeFailure(op string, err error) error {
	var subjErr *aggregation.SubjectError
	if errors.As(err, &subjErr) {
		return &PartialAggregationError{SubjectID: subjErr.SubjectID, Err: subjErr.Err}
	}
	return &StoreError{Op: op, Err: err}
}

func requireUser(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return &UnauthorizedError{Message: "No authenticated user"}
	}
	return nil
}
