// provision runs one account-provisioning request against the configured
// backends and prints the result as JSON. The request is read as JSON from
// -request (a file path, or "-" for stdin); it must already be validated by
// the caller.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"institute-lms/backend/internal/audit"
	"institute-lms/backend/internal/compat"
	"institute-lms/backend/internal/config"
	"institute-lms/backend/internal/credentials"
	"institute-lms/backend/internal/gauth"
	"institute-lms/backend/internal/identity"
	"institute-lms/backend/internal/profile"
	"institute-lms/backend/internal/provision"
	otelsetup "institute-lms/backend/internal/telemetry/otel"
)

func main() {
	requestPath := flag.String("request", "-", `path to the request JSON ("-" for stdin)`)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DefaultPassword == "" {
		log.Fatal("DEFAULT_PASSWORD must be set to provision identities")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "lms-provisioning")
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	creds := credentials.NewStore(cfg.ServiceAccountB64, cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	cred, err := creds.Load()
	if err != nil {
		log.Fatalf("credentials: %v", err)
	}

	minter := gauth.NewMinter(creds, cfg.TokenURL)
	minter.HTTPClient.Timeout = cfg.Timeout()

	admin, err := identity.NewFirebaseAdminClient(ctx, cfg.ProjectID, cred.Raw)
	if err != nil {
		log.Fatalf("identity client: %v", err)
	}
	signup := identity.NewSignupClient(cfg.WebAPIKey, cfg.IdentitySignupURL)
	signup.HTTPClient.Timeout = cfg.Timeout()

	store, err := profile.NewFirestoreStore(ctx, cfg.ProjectID, cfg.StudentsCollection, cred.Raw)
	if err != nil {
		log.Fatalf("document store: %v", err)
	}
	defer store.Close()
	restWriter := profile.NewRESTWriter(minter, cfg.ProjectID, cfg.StudentsCollection, cfg.FirestoreBaseURL)
	restWriter.HTTPClient.Timeout = cfg.Timeout()

	var emitter audit.Emitter = audit.LogEmitter{}
	if k := audit.NewKafkaEmitter(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic); k != nil {
		defer k.Close()
		emitter = k
	}

	orch := provision.NewOrchestrator(
		identity.NewProvisioner(admin, signup, cfg.DefaultPassword, compat.Recoverable),
		profile.NewPersister(store, restWriter, compat.Recoverable),
		cfg.DefaultCountryCode,
		emitter,
	)

	req, err := readRequest(*requestPath)
	if err != nil {
		log.Fatalf("request: %v", err)
	}

	result, err := orch.Run(ctx, req)
	if err != nil {
		log.Fatalf("provision: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encoding result: %v", err)
	}
	fmt.Println(string(out))
	log.Printf("provision: %s", result.Explain())
	for _, w := range result.Warnings {
		log.Printf("provision: warning: %s", w)
	}
}

func readRequest(path string) (provision.Request, error) {
	var req provision.Request
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("parsing request JSON: %w", err)
	}
	return req, nil
}
