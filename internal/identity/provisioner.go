package identity

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable marks the degraded outcome: neither tier could produce an
// identity. Non-fatal to the pipeline; surfaced as a warning while profile
// creation continues under a synthetic uid.
var ErrUnavailable = errors.New("identity: unavailable")

// Outcome is the result of one Provision call.
type Outcome struct {
	// Identity is the created or found record; nil when both tiers failed.
	Identity *Record
	// Created is true when a new user was created (either tier), false when
	// an existing user was found.
	Created bool
	// UsedFallback is true when the REST sign-up tier produced the identity.
	UsedFallback bool
	Warnings     []string
}

// Provisioner runs the lookup-then-create state machine with one fallback
// tier. Recoverable decides which primary-client errors may drop to the
// fallback; everything else is fatal.
type Provisioner struct {
	Admin           AdminClient
	Signup          SignupAPI
	DefaultPassword string
	Recoverable     func(error) bool
}

// NewProvisioner returns a Provisioner over the given clients.
func NewProvisioner(admin AdminClient, signup SignupAPI, defaultPassword string, recoverable func(error) bool) *Provisioner {
	return &Provisioner{Admin: admin, Signup: signup, DefaultPassword: defaultPassword, Recoverable: recoverable}
}

// Provision finds or creates the identity for email.
//
// Lookup hit returns the existing record (with a best-effort phone backfill).
// Lookup miss creates via the admin client. A primary-client error carrying
// the known incompatibility signature triggers exactly one REST sign-up
// attempt; if that also fails the outcome degrades to a nil identity plus
// warning. Any other error is fatal.
func (p *Provisioner) Provision(ctx context.Context, email, displayName, phone string) (Outcome, error) {
	var out Outcome

	existing, err := p.Admin.GetUserByEmail(ctx, email)
	if err == nil {
		out.Identity = existing
		p.backfillPhone(ctx, &out, phone)
		return out, nil
	}
	if errors.Is(err, ErrNotFound) {
		rec, cerr := p.Admin.CreateUser(ctx, CreateParams{
			Email:       email,
			Password:    p.DefaultPassword,
			DisplayName: displayName,
			PhoneNumber: phone,
		})
		if cerr == nil {
			out.Identity = rec
			out.Created = true
			return out, nil
		}
		if !p.Recoverable(cerr) {
			return out, fmt.Errorf("identity: create user: %w", cerr)
		}
		return p.fallback(ctx, email, out, cerr)
	}
	if p.Recoverable(err) {
		return p.fallback(ctx, email, out, err)
	}
	return out, fmt.Errorf("identity: lookup: %w", err)
}

// fallback performs the single REST sign-up attempt. Failure degrades rather
// than aborts: the caller continues with a synthetic uid.
func (p *Provisioner) fallback(ctx context.Context, email string, out Outcome, primaryErr error) (Outcome, error) {
	uid, err := p.Signup.SignUp(ctx, email, p.DefaultPassword)
	if err != nil {
		out.Identity = nil
		out.Warnings = append(out.Warnings, fmt.Sprintf("%v: primary client failed (%v) and fallback sign-up failed (%v)", ErrUnavailable, primaryErr, err))
		return out, nil
	}
	out.Identity = &Record{UID: uid, Email: email}
	out.Created = true
	out.UsedFallback = true
	out.Warnings = append(out.Warnings, fmt.Sprintf("identity created via REST fallback after primary client error: %v", primaryErr))
	return out, nil
}

// backfillPhone updates an existing identity that has no phone number when
// one was supplied. Best-effort: failures become warnings, never errors.
func (p *Provisioner) backfillPhone(ctx context.Context, out *Outcome, phone string) {
	if phone == "" || out.Identity == nil || out.Identity.PhoneNumber != "" {
		return
	}
	if err := p.Admin.UpdatePhoneNumber(ctx, out.Identity.UID, phone); err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("phone backfill failed for uid %s: %v", out.Identity.UID, err))
		return
	}
	out.Identity.PhoneNumber = phone
}
