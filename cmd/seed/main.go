// seed inserts development sample data for local testing.
// Idempotent: skips everything if the dev admin (admin@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	actordomain "apflow/internal/actor/domain"
	actorrepo "apflow/internal/actor/repository"
	assignmentrepo "apflow/internal/assignment/repository"
	"apflow/internal/config"
	"apflow/internal/db"
	policydomain "apflow/internal/policy/domain"
	policyrepo "apflow/internal/policy/repository"
	"apflow/internal/security"
)

// strictMFAPolicy makes every actor with a phone on file authenticate with
// MFA, regardless of role. Seeded for dept-1 as a policy example.
const strictMFAPolicy = `package apflow.login

default mfa_required = false

mfa_required if {
	input.actor.has_phone
}
`

const devPassword = "devpass123"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		fmt.Fprintln(os.Stderr, "seed: refusing to run with APP_ENV=production")
		os.Exit(1)
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	ctx := context.Background()
	profiles := actorrepo.NewPostgresRepository(sqlDB)

	existing, err := profiles.GetByEmail(ctx, "admin@example.com")
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Println("seed: dev data already present, nothing to do")
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: hash: %v", err)
	}

	now := time.Now().UTC()
	seedProfiles := []*actordomain.Profile{
		{Email: "admin@example.com", FullName: "Dev Admin", Role: actordomain.RoleAdmin, Phone: "15550000001"},
		{Email: "operations@example.com", FullName: "Dev Operations", Role: actordomain.RoleOperations, Phone: "15550000002"},
		{Email: "manager@example.com", FullName: "Dev Manager", Role: actordomain.RoleManager, DepartmentID: "dept-1", ProgramIDs: []string{"spring gala"}},
		{Email: "finance@example.com", FullName: "Dev Finance", Role: actordomain.RoleFinance},
		{Email: "submitter@example.com", FullName: "Dev Submitter", Role: actordomain.RoleSubmitter, DepartmentID: "dept-1"},
		{Email: "viewer@example.com", FullName: "Dev Viewer", Role: actordomain.RoleViewer, AllowedPages: []string{actordomain.EntitlementOtherInvoices}},
	}

	var managerID string
	for _, p := range seedProfiles {
		p.ID = uuid.New().String()
		p.PasswordHash = hash
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := profiles.Create(ctx, p); err != nil {
			log.Fatalf("seed: profile %s: %v", p.Email, err)
		}
		if p.Role == actordomain.RoleManager {
			managerID = p.ID
		}
	}

	assignments := assignmentrepo.NewPostgresRepository(sqlDB)
	if err := assignments.SetDepartmentDefaults(ctx, "dept-1", []string{managerID}); err != nil {
		log.Fatalf("seed: department defaults: %v", err)
	}

	policies := policyrepo.NewPostgresRepository(sqlDB)
	if err := policies.Create(ctx, &policydomain.Policy{
		ID:           uuid.New().String(),
		DepartmentID: "dept-1",
		Name:         "strict-mfa",
		Rules:        strictMFAPolicy,
		Enabled:      true,
		CreatedAt:    now,
	}); err != nil {
		log.Fatalf("seed: policy: %v", err)
	}

	log.Printf("seed: created %d profiles (password %q), dept-1 defaults, and one login policy", len(seedProfiles), devPassword)
}
