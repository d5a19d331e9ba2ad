// Package provision orchestrates account provisioning: one auth identity and
// one profile document per request, across two independently-owned backends.
// It is the only place that decides fatal vs. fallback vs. degrade.
package provision

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks a request the caller should have validated. Fatal;
// never retried here.
var ErrValidation = errors.New("provision: invalid request")

// SyntheticUIDPrefix marks locally generated uids used when no auth identity
// could be created. Profiles carrying one are reconciled out of band.
const SyntheticUIDPrefix = "temp-"

// Request is a validated provisioning request. Immutable input; the pipeline
// never mutates it.
type Request struct {
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	ClassID      string   `json:"classId"`
	RegdNo       string   `json:"regdNo"`
	Phone        string   `json:"phone,omitempty"`
	Role         string   `json:"role,omitempty"`
	CreatedBy    string   `json:"createdBy,omitempty"`
	CoursesTitle []string `json:"coursesTitle,omitempty"`
	TotalFee     *float64 `json:"totalFee,omitempty"`
	Discount     *float64 `json:"discount,omitempty"`
}

// Result is the sole output contract to the caller. Produced once per
// request; immutable.
type Result struct {
	IdentityCreated bool     `json:"identityCreated"`
	ProfileCreated  bool     `json:"profileCreated"`
	UsedFallback    bool     `json:"usedFallback"`
	UID             string   `json:"uid"`
	Warnings        []string `json:"warnings"`
}

// Degraded reports whether the profile references a synthetic uid instead of
// a real auth identity.
func (r *Result) Degraded() bool {
	return strings.HasPrefix(r.UID, SyntheticUIDPrefix)
}

// Explain returns the human-readable outcome class. Never includes secrets.
func (r *Result) Explain() string {
	switch {
	case r.ProfileCreated && r.Degraded():
		return "succeeded with degraded identity: profile saved under a temporary id; the auth account must be reconciled later"
	case r.ProfileCreated:
		return "fully succeeded"
	default:
		return "failed"
	}
}

func validate(req Request) error {
	for _, f := range []struct{ name, value string }{
		{"email", req.Email},
		{"name", req.Name},
		{"classId", req.ClassID},
		{"regdNo", req.RegdNo},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, f.name)
		}
	}
	return nil
}
