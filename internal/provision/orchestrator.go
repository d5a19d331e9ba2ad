package provision

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"institute-lms/backend/internal/audit"
	"institute-lms/backend/internal/identity"
	"institute-lms/backend/internal/normalize"
	"institute-lms/backend/internal/profile"
)

const (
	defaultRole      = "student"
	defaultCreatedBy = "system"
)

// Orchestrator drives the pipeline: normalize, identity, profile, in that
// order and never in parallel (the profile embeds the identity's uid, so
// identity must resolve first, successfully or as absent-with-synthetic-uid).
// Safe for concurrent use across requests; no cross-request ordering.
type Orchestrator struct {
	Identity           *identity.Provisioner
	Profile            *profile.Persister
	DefaultCountryCode string
	Audit              audit.Emitter

	tracer       trace.Tracer
	syntheticUID func() string
}

// NewOrchestrator wires the pipeline. emitter may be nil to disable audit
// events.
func NewOrchestrator(idp *identity.Provisioner, persister *profile.Persister, defaultCountryCode string, emitter audit.Emitter) *Orchestrator {
	return &Orchestrator{
		Identity:           idp,
		Profile:            persister,
		DefaultCountryCode: defaultCountryCode,
		Audit:              emitter,
		tracer:             otel.Tracer("institute-lms/backend/provision"),
		syntheticUID:       func() string { return SyntheticUIDPrefix + uuid.NewString() },
	}
}

// Run executes one provisioning request.
//
// Identity failure on both tiers degrades to a synthetic uid plus warning;
// duplicate profiles and persistence failures are fatal. Errors carry
// diagnostic detail but never key material or tokens.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "provision.run")
	defer span.End()

	if err := validate(req); err != nil {
		return nil, o.fail(ctx, span, req, err)
	}

	emailNormalized := normalize.Email(req.Email)
	phone, hasPhone := normalize.Phone(req.Phone, o.DefaultCountryCode)
	if !hasPhone {
		phone = ""
	}

	idOut, err := o.Identity.Provision(ctx, req.Email, req.Name, phone)
	if err != nil {
		return nil, o.fail(ctx, span, req, err)
	}

	result := &Result{
		IdentityCreated: idOut.Created,
		UsedFallback:    idOut.UsedFallback,
		Warnings:        idOut.Warnings,
	}
	if idOut.Identity != nil {
		result.UID = idOut.Identity.UID
	} else {
		result.UID = o.syntheticUID()
	}

	role := req.Role
	if role == "" {
		role = defaultRole
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}
	pOut, err := o.Profile.Persist(ctx, profile.Input{
		RegdNo:          req.RegdNo,
		Email:           req.Email,
		EmailNormalized: emailNormalized,
		Name:            req.Name,
		ClassID:         req.ClassID,
		UID:             result.UID,
		Role:            role,
		Phone:           phone,
		RawPhone:        req.Phone,
		CreatedBy:       createdBy,
		CoursesTitle:    req.CoursesTitle,
		TotalFee:        req.TotalFee,
		Discount:        req.Discount,
		AuthUserCreated: idOut.Identity != nil,
	})
	result.Warnings = append(result.Warnings, pOut.Warnings...)
	if err != nil {
		return nil, o.fail(ctx, span, req, err)
	}

	result.ProfileCreated = pOut.Created
	result.UsedFallback = result.UsedFallback || pOut.UsedFallback

	span.SetAttributes(
		attribute.Bool("provision.identity_created", result.IdentityCreated),
		attribute.Bool("provision.profile_created", result.ProfileCreated),
		attribute.Bool("provision.used_fallback", result.UsedFallback),
		attribute.Bool("provision.degraded", result.Degraded()),
		attribute.Int("provision.warning_count", len(result.Warnings)),
	)
	o.emit(ctx, audit.NewEvent(audit.ActionCompleted, result.UID, req.RegdNo, result.UsedFallback, len(result.Warnings), ""))
	return result, nil
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, req Request, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "provisioning failed")
	o.emit(ctx, audit.NewEvent(audit.ActionFailed, "", req.RegdNo, false, 0, err.Error()))
	return fmt.Errorf("provision %s: %w", req.RegdNo, err)
}

func (o *Orchestrator) emit(ctx context.Context, e audit.Event) {
	if o.Audit == nil {
		return
	}
	o.Audit.Emit(ctx, e)
}
