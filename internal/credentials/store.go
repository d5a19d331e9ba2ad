// Package credentials loads the service-account credential used to
// authenticate against the hosted Google backends. The credential is loaded
// once per process and cached; configuration may supply it as a base64 blob,
// a raw JSON blob, or a file path, in that precedence order.
package credentials

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is returned when no configured source yields a parseable
// service-account credential. Operator-fixable; fatal to the pipeline.
var ErrUnavailable = errors.New("credentials: service account unavailable")

// ServiceAccount is the subset of the service-account JSON the pipeline needs.
type ServiceAccount struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// Credential is a parsed, ready-to-sign service-account credential.
// Immutable after Load returns it.
type Credential struct {
	ServiceAccount

	// Key is the parsed RSA private key from PrivateKey.
	Key *rsa.PrivateKey
	// Raw is the credential JSON as loaded (with the key material's escaped
	// newlines repaired), suitable for handing to SDK clients.
	Raw []byte
}

// Store loads and caches the service-account credential. Safe for concurrent
// use; concurrent first callers share one load via singleflight.
type Store struct {
	// Base64 is a base64-encoded service-account JSON blob (first source).
	Base64 string
	// JSON is a raw service-account JSON blob (second source).
	JSON string
	// Path is a service-account JSON file on disk (third source).
	Path string

	group  singleflight.Group
	mu     sync.RWMutex
	cached *Credential
}

// NewStore returns a Store that searches the given sources in order:
// base64 blob, raw JSON blob, file path. Empty sources are skipped.
func NewStore(b64, rawJSON, path string) *Store {
	return &Store{Base64: b64, JSON: rawJSON, Path: path}
}

// Load returns the cached credential, loading it on first call. A source that
// is present but unparseable is skipped in favor of the next one; if no
// source yields a valid credential the error wraps ErrUnavailable.
func (s *Store) Load() (*Credential, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := s.group.Do("load", func() (any, error) {
		cred, err := s.load()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cached = cred
		s.mu.Unlock()
		return cred, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential), nil
}

func (s *Store) load() (*Credential, error) {
	var lastErr error
	for _, source := range []struct {
		name string
		read func() ([]byte, error)
	}{
		{"base64 blob", s.fromBase64},
		{"json blob", s.fromJSON},
		{"file", s.fromFile},
	} {
		raw, err := source.read()
		if err != nil {
			if !errors.Is(err, errSourceEmpty) {
				lastErr = fmt.Errorf("%s: %w", source.name, err)
			}
			continue
		}
		cred, err := parse(raw)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", source.name, err)
			continue
		}
		return cred, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return nil, fmt.Errorf("%w: no source configured", ErrUnavailable)
}

var errSourceEmpty = errors.New("source not configured")

func (s *Store) fromBase64() ([]byte, error) {
	if strings.TrimSpace(s.Base64) == "" {
		return nil, errSourceEmpty
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s.Base64))
}

func (s *Store) fromJSON() ([]byte, error) {
	if strings.TrimSpace(s.JSON) == "" {
		return nil, errSourceEmpty
	}
	return []byte(s.JSON), nil
}

func (s *Store) fromFile() ([]byte, error) {
	if strings.TrimSpace(s.Path) == "" {
		return nil, errSourceEmpty
	}
	return os.ReadFile(s.Path)
}

// parse decodes the service-account JSON, repairs literal \n escapes in the
// key material (a common transport artifact when the JSON passes through env
// vars), and parses the PEM private key.
func parse(raw []byte) (*Credential, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, err
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("missing client_email or private_key")
	}
	sa.PrivateKey = strings.ReplaceAll(sa.PrivateKey, `\n`, "\n")

	key, err := parsePrivateKey(sa.PrivateKey)
	if err != nil {
		return nil, err
	}

	repaired, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   sa.ProjectID,
		"client_email": sa.ClientEmail,
		"private_key":  sa.PrivateKey,
	})
	if err != nil {
		return nil, err
	}
	return &Credential{ServiceAccount: sa, Key: key, Raw: repaired}, nil
}

func parsePrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("private_key is not valid PEM")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private_key is not RSA")
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}
