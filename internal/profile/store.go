// Package profile persists the student profile document to the hosted
// document store. The primary tier uses the Firestore client; a manually
// encoded REST write covers the known crypto-backend defect.
package profile

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Input is the validated, normalized material for one profile document.
// The uid may be a real identity reference or a synthetic temporary id, but
// never empty.
type Input struct {
	RegdNo          string
	Email           string
	EmailNormalized string
	Name            string
	ClassID         string
	UID             string
	Role            string
	Phone           string // normalized form; empty when none supplied
	RawPhone        string // primary contact number as supplied
	CreatedBy       string
	CoursesTitle    []string
	TotalFee        *float64
	Discount        *float64
	AuthUserCreated bool
	CreatedAt       time.Time // stamped by the Persister
}

// Store is the document-store surface the persister needs.
type Store interface {
	// Exists reports whether any document has field == value.
	Exists(ctx context.Context, field, value string) (bool, error)
	Create(ctx context.Context, in Input) error
}

// FirestoreStore implements Store over the Firestore client (primary tier).
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore builds the primary document-store client from the
// repaired service-account JSON.
func NewFirestoreStore(ctx context.Context, projectID, collection string, credentialsJSON []byte) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("profile: init firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) Exists(ctx context.Context, field, value string) (bool, error) {
	iter := s.client.Collection(s.collection).Where(field, "==", value).Limit(1).Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FirestoreStore) Create(ctx context.Context, in Input) error {
	_, _, err := s.client.Collection(s.collection).Add(ctx, documentData(in))
	return err
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// documentData builds the native document for the primary client. Field set
// must stay in sync with documentFields (the REST encoding).
func documentData(in Input) map[string]any {
	courses := in.CoursesTitle
	if courses == nil {
		courses = []string{}
	}
	data := map[string]any{
		"regdNo":          in.RegdNo,
		"email":           in.Email,
		"emailNormalized": in.EmailNormalized,
		"name":            in.Name,
		"classId":         in.ClassID,
		"uid":             in.UID,
		"role":            in.Role,
		"phone1":          in.RawPhone,
		"phone":           in.Phone,
		"coursesTitle":    courses,
		"reminderCount":   0,
		"createdAt":       in.CreatedAt,
		"createdBy":       in.CreatedBy,
		"authUserCreated": in.AuthUserCreated,
	}
	if in.TotalFee != nil {
		data["totalFee"] = *in.TotalFee
	}
	if in.Discount != nil {
		data["discount"] = *in.Discount
	}
	return data
}
