package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"institute-lms/backend/internal/gauth"
)

// DefaultFirestoreBaseURL is the document-store REST API base.
const DefaultFirestoreBaseURL = "https://firestore.googleapis.com/v1"

// DatastoreScope is the OAuth2 scope minted for fallback writes.
const DatastoreScope = "https://www.googleapis.com/auth/datastore"

const restTimeout = 10 * time.Second

// FallbackWriter is the fallback document-create call. Implemented by
// RESTWriter; narrowed to an interface so tests can count attempts.
type FallbackWriter interface {
	Create(ctx context.Context, in Input) error
}

// RESTWriter creates profile documents via the document-store REST endpoint,
// authenticated by a bearer token minted per call. Fields are encoded
// individually in the typed wire format (see fields.go).
type RESTWriter struct {
	BaseURL    string
	ProjectID  string
	Collection string
	Tokens     gauth.TokenSource
	HTTPClient *http.Client
}

// NewRESTWriter returns a RESTWriter. baseURL may be empty to use
// DefaultFirestoreBaseURL.
func NewRESTWriter(tokens gauth.TokenSource, projectID, collection, baseURL string) *RESTWriter {
	if baseURL == "" {
		baseURL = DefaultFirestoreBaseURL
	}
	return &RESTWriter{
		BaseURL:    baseURL,
		ProjectID:  projectID,
		Collection: collection,
		Tokens:     tokens,
		HTTPClient: &http.Client{Timeout: restTimeout},
	}
}

// Create mints a datastore-scoped token and POSTs the typed-field document.
func (w *RESTWriter) Create(ctx context.Context, in Input) error {
	token, err := w.Tokens.Mint(ctx, DatastoreScope)
	if err != nil {
		return fmt.Errorf("profile: minting fallback token: %w", err)
	}

	payload, err := json.Marshal(map[string]any{"fields": documentFields(in)})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/projects/%s/databases/(default)/documents/%s",
		w.BaseURL, w.ProjectID, w.Collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("profile: REST create failed status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
