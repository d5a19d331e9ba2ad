package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSignUp_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if got := r.URL.Query().Get("key"); got != "web-api-key" {
			t.Errorf("key = %q, want web-api-key", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["email"] != "ab@gmail.com" || body["password"] != "secret" {
			t.Errorf("body = %v", body)
		}
		if body["returnSecureToken"] != false {
			t.Errorf("returnSecureToken = %v, want false", body["returnSecureToken"])
		}
		w.Write([]byte(`{"localId":"uid-123","email":"ab@gmail.com"}`))
	}))
	defer server.Close()

	c := NewSignupClient("web-api-key", server.URL)
	uid, err := c.SignUp(context.Background(), "ab@gmail.com", "secret")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if uid != "uid-123" {
		t.Errorf("uid = %q, want uid-123", uid)
	}
}

func TestSignUp_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"EMAIL_EXISTS"}}`))
	}))
	defer server.Close()

	c := NewSignupClient("web-api-key", server.URL)
	_, err := c.SignUp(context.Background(), "ab@gmail.com", "secret")
	if err == nil || !strings.Contains(err.Error(), "EMAIL_EXISTS") {
		t.Errorf("SignUp = %v, want EMAIL_EXISTS in error", err)
	}
}

func TestSignUp_MissingLocalID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewSignupClient("web-api-key", server.URL)
	_, err := c.SignUp(context.Background(), "ab@gmail.com", "secret")
	if err == nil || !strings.Contains(err.Error(), "localId") {
		t.Errorf("SignUp = %v, want missing localId error", err)
	}
}

func TestNewSignupClient_DefaultURL(t *testing.T) {
	c := NewSignupClient("k", "")
	if c.BaseURL != DefaultSignupURL {
		t.Errorf("BaseURL = %q, want default", c.BaseURL)
	}
	if c.HTTPClient == nil || c.HTTPClient.Timeout == 0 {
		t.Error("HTTPClient should have a bounded timeout")
	}
}
