// Package identity creates or looks up auth-service users. The primary tier
// goes through the administrative client; a REST sign-up fallback covers the
// known crypto-backend defect in that client.
package identity

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// ErrNotFound is returned by AdminClient.GetUserByEmail when no user exists
// for the email. It signals "proceed to create", not a failure.
var ErrNotFound = errors.New("identity: user not found")

// Record is a created-or-found auth identity. Immutable except for the
// optional phone-number backfill performed by the Provisioner.
type Record struct {
	UID         string
	Email       string
	PhoneNumber string
}

// CreateParams are the fields submitted when creating a new user.
type CreateParams struct {
	Email       string
	Password    string
	DisplayName string
	PhoneNumber string // optional; omitted when empty
}

// AdminClient is the administrative surface of the auth service used by the
// primary tier.
type AdminClient interface {
	GetUserByEmail(ctx context.Context, email string) (*Record, error)
	CreateUser(ctx context.Context, p CreateParams) (*Record, error)
	UpdatePhoneNumber(ctx context.Context, uid, phone string) error
}

// FirebaseAdminClient implements AdminClient over the Firebase Admin SDK.
type FirebaseAdminClient struct {
	client *auth.Client
}

// NewFirebaseAdminClient builds the admin auth client from the repaired
// service-account JSON.
func NewFirebaseAdminClient(ctx context.Context, projectID string, credentialsJSON []byte) (*FirebaseAdminClient, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("identity: init admin app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity: init admin auth client: %w", err)
	}
	return &FirebaseAdminClient{client: client}, nil
}

func (c *FirebaseAdminClient) GetUserByEmail(ctx context.Context, email string) (*Record, error) {
	u, err := c.client.GetUserByEmail(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Record{UID: u.UID, Email: u.Email, PhoneNumber: u.PhoneNumber}, nil
}

func (c *FirebaseAdminClient) CreateUser(ctx context.Context, p CreateParams) (*Record, error) {
	params := (&auth.UserToCreate{}).
		Email(p.Email).
		Password(p.Password).
		DisplayName(p.DisplayName)
	if p.PhoneNumber != "" {
		params = params.PhoneNumber(p.PhoneNumber)
	}
	u, err := c.client.CreateUser(ctx, params)
	if err != nil {
		return nil, err
	}
	return &Record{UID: u.UID, Email: u.Email, PhoneNumber: u.PhoneNumber}, nil
}

func (c *FirebaseAdminClient) UpdatePhoneNumber(ctx context.Context, uid, phone string) error {
	_, err := c.client.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).PhoneNumber(phone))
	return err
}
