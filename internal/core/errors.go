package core

import "fmt"

// ValidationError reports malformed or out-of-range caller input
// (missing fields, margin percentage outside [0,500], bad dates).
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// NotFoundError reports an absent order, product, invoice, or setting.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Ref)
}

func notFound(entity string, ref any) *NotFoundError {
	return &NotFoundError{Entity: entity, Ref: fmt.Sprint(ref)}
}

// PermissionError reports an actor acting outside its routing or lock
// authority, or a restore attempt by a non-allow-listed identity.
// The message is safe to show to the caller.
type PermissionError struct {
	Msg string
}

func (e *PermissionError) Error() string { return e.Msg }

// GuardError reports a blocked destructive action, e.g. deleting an
// invoiced product without elevation. It tells the caller what to do
// instead, without internal detail.
type GuardError struct {
	Msg string
}

func (e *GuardError) Error() string { return e.Msg }

// ServiceUnavailableError reports an unreachable or unconfigured external
// collaborator (email, SMS, PDF rendering). The wrapped cause is kept for
// logs; Msg is what the caller sees.
type ServiceUnavailableError struct {
	Service string
	Err     error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s service unavailable: %v", e.Service, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// ConsistencyError reports that a multi-step operation failed after a prior
// step committed, leaving sibling records mismatched. It must be logged
// loudly and surfaced distinctly — never coerced into a plain success or a
// plain failure.
type ConsistencyError struct {
	Op  string
	Err error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation in %s: %v", e.Op, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
