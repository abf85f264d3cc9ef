// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev admin (dev-admin) already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"compliance-portal/backend/internal/config"
	"compliance-portal/backend/internal/db"
	identitydomain "compliance-portal/backend/internal/identity/domain"
	identityrepo "compliance-portal/backend/internal/identity/repository"
	orgrepo "compliance-portal/backend/internal/organization/repository"
	"compliance-portal/backend/internal/platform/rbac"
	"compliance-portal/backend/internal/security"
	"compliance-portal/backend/internal/tokenvault"
)

const (
	devOrgName   = "Acme Corp"
	devOrgEmail  = "dpo@acme.example"
	devAdminUser = "dev-admin"
	devStaffUser = "dev-staff"
	devSuperUser = "dev-superadmin"
	devPassword  = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := identityrepo.NewPostgresRepository(conn)

	existing, err := users.GetByUsername(ctx, devAdminUser)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev-admin exists). Skipping.")
		os.Exit(0)
	}

	var orgID int64
	if err := conn.QueryRowContext(ctx,
		`INSERT INTO organizations (name, contact_email) VALUES ($1, $2) RETURNING id`,
		devOrgName, devOrgEmail).Scan(&orgID); err != nil {
		log.Fatalf("seed org: %v", err)
	}

	vault := tokenvault.New(orgrepo.NewPostgresRepository(conn))
	portalToken, err := vault.Issue(ctx, orgID)
	if err != nil {
		log.Fatalf("seed portal token: %v", err)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed password: %v", err)
	}

	now := time.Now().UTC()
	seedUsers := []identitydomain.User{
		{Username: devAdminUser, FirstName: "Dev", LastName: "Admin", Email: "admin@acme.example",
			Role: rbac.RoleAdmin, OrganizationID: orgID},
		{Username: devStaffUser, FirstName: "Dev", LastName: "Staff", Email: "staff@acme.example",
			Role: rbac.RoleUser, OrganizationID: orgID},
		{Username: devSuperUser, FirstName: "Dev", LastName: "Super", Email: "super@portal.example",
			Role: rbac.RoleSuperAdmin, OrganizationID: orgID},
	}
	for i := range seedUsers {
		u := &seedUsers[i]
		u.PasswordHash = hash
		u.IsActive = true
		u.CreatedAt = now
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("seed user %s: %v", u.Username, err)
		}
	}

	log.Printf("Seeded org %q (id %d)", devOrgName, orgID)
	log.Printf("Portal URL: %s/portal/%s", cfg.PortalBaseURL, portalToken)
	log.Printf("Staff logins: %s / %s / %s (password %q)", devAdminUser, devStaffUser, devSuperUser, devPassword)
}
