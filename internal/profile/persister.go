package profile

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for profile persistence; the orchestrator maps them to the
// caller-facing outcome.
var (
	// ErrDuplicateEmail means a document with the same normalized email
	// already exists. Fatal, user-correctable; nothing is written.
	ErrDuplicateEmail = errors.New("profile: duplicate email")
	// ErrDuplicateRegistration means the registration number is taken.
	// Fatal, user-correctable; nothing is written.
	ErrDuplicateRegistration = errors.New("profile: duplicate registration number")
	// ErrPersistenceUnavailable means no tier could write the document.
	// Fatal; nothing was durably saved.
	ErrPersistenceUnavailable = errors.New("profile: persistence unavailable")
)

// Outcome is the result of one Persist call.
type Outcome struct {
	Created      bool
	UsedFallback bool
	Warnings     []string
}

// Persister writes the profile document: duplicate checks, primary write,
// one REST fallback attempt on the known incompatibility signature.
type Persister struct {
	Store       Store
	Fallback    FallbackWriter
	Recoverable func(error) bool

	now func() time.Time
}

// NewPersister returns a Persister over the given tiers.
func NewPersister(store Store, fallback FallbackWriter, recoverable func(error) bool) *Persister {
	return &Persister{Store: store, Fallback: fallback, Recoverable: recoverable, now: time.Now}
}

// Persist runs duplicate checks, then writes the document.
//
// A duplicate-check failure carrying the known signature skips remaining
// checks with a warning ("continuing without duplicate protection"); any
// other check failure is fatal. A primary-write failure with the signature
// gets exactly one fallback attempt; if that also fails, the error wraps
// ErrPersistenceUnavailable with diagnostics from both tiers.
//
// The check-then-write sequence is not transactional: two concurrent
// requests for the same email can both pass the checks before either writes.
// Accepted open issue; the store offers no unique-constraint primitive on
// this surface.
func (p *Persister) Persist(ctx context.Context, in Input) (Outcome, error) {
	var out Outcome

	checks := []struct {
		field  string
		value  string
		dupErr error
	}{
		{"emailNormalized", in.EmailNormalized, ErrDuplicateEmail},
		{"regdNo", in.RegdNo, ErrDuplicateRegistration},
	}
	for _, check := range checks {
		found, err := p.Store.Exists(ctx, check.field, check.value)
		if err != nil {
			if p.Recoverable(err) {
				out.Warnings = append(out.Warnings, fmt.Sprintf("duplicate check on %s hit the known client defect; continuing without duplicate protection: %v", check.field, err))
				break
			}
			return out, fmt.Errorf("profile: duplicate check on %s: %w", check.field, err)
		}
		if found {
			return out, fmt.Errorf("%w: %s", check.dupErr, check.value)
		}
	}

	in.CreatedAt = p.now().UTC()

	primaryErr := p.Store.Create(ctx, in)
	if primaryErr == nil {
		out.Created = true
		return out, nil
	}
	if !p.Recoverable(primaryErr) {
		return out, fmt.Errorf("%w: primary write: %v", ErrPersistenceUnavailable, primaryErr)
	}

	if fallbackErr := p.Fallback.Create(ctx, in); fallbackErr != nil {
		return out, fmt.Errorf("%w: primary write failed (%v); fallback write failed (%v)", ErrPersistenceUnavailable, primaryErr, fallbackErr)
	}
	out.Created = true
	out.UsedFallback = true
	out.Warnings = append(out.Warnings, fmt.Sprintf("profile written via REST fallback after primary client error: %v", primaryErr))
	return out, nil
}
