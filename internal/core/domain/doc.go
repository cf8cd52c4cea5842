// Package domain defines the core domain models for tokpass.
//
// This package contains:
//
//   - session.go: Session value object and its login state
//   - formerrors.go: Form Error State (field-keyed validation messages)
//   - errors.go: DomainError and the error taxonomy
//
// Domain types carry no I/O. Persistence and transport live in the
// infra and cli packages.
package domain
