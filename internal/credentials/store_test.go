package credentials

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestLoad_FromJSONBlob(t *testing.T) {
	store := NewStore("", string(TestServiceAccountJSON()), "")
	cred, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cred.ProjectID != "test-project" {
		t.Errorf("ProjectID = %q, want test-project", cred.ProjectID)
	}
	if cred.ClientEmail != "pipeline@test-project.iam.gserviceaccount.com" {
		t.Errorf("ClientEmail = %q", cred.ClientEmail)
	}
	if cred.Key == nil {
		t.Fatal("Key is nil")
	}
	if len(cred.Raw) == 0 {
		t.Fatal("Raw is empty")
	}
}

func TestLoad_Base64TakesPrecedence(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(TestServiceAccountJSON())
	store := NewStore(b64, `{"not":"valid service account"}`, "")
	cred, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cred.ProjectID != "test-project" {
		t.Errorf("ProjectID = %q, want test-project", cred.ProjectID)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, TestServiceAccountJSON(), 0o600); err != nil {
		t.Fatal(err)
	}
	store := NewStore("", "", path)
	if _, err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_RepairsEscapedNewlines(t *testing.T) {
	escaped := strings.ReplaceAll(TestPrivateKeyPEM, "\n", `\n`)
	raw, err := json.Marshal(map[string]string{
		"project_id":   "test-project",
		"client_email": "pipeline@test-project.iam.gserviceaccount.com",
		"private_key":  escaped,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Marshal escapes the backslashes, so the decoded field holds literal \n
	// sequences, the same artifact env-var transport produces.
	store := NewStore("", string(raw), "")
	cred, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cred.Key == nil {
		t.Fatal("Key is nil after newline repair")
	}
}

func TestLoad_BadSourceFallsThrough(t *testing.T) {
	store := NewStore("!!not-base64!!", string(TestServiceAccountJSON()), "")
	if _, err := store.Load(); err != nil {
		t.Fatalf("Load should fall through to the JSON blob: %v", err)
	}
}

func TestLoad_NoSources(t *testing.T) {
	store := NewStore("", "", "")
	_, err := store.Load()
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Load = %v, want ErrUnavailable", err)
	}
}

func TestLoad_UnparseableSources(t *testing.T) {
	store := NewStore("", `{"client_email":"x@y","private_key":"not pem"}`, "")
	_, err := store.Load()
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Load = %v, want ErrUnavailable", err)
	}
}

func TestLoad_CachedAndConcurrent(t *testing.T) {
	store := NewTestStore()
	var wg sync.WaitGroup
	creds := make([]*Credential, 8)
	for i := range creds {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := store.Load()
			if err != nil {
				t.Errorf("Load: %v", err)
				return
			}
			creds[i] = c
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(creds); i++ {
		if creds[i] != creds[0] {
			t.Fatal("concurrent Load returned distinct credentials")
		}
	}
}
