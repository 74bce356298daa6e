// bootstrap-admin is a one-shot tool that creates the platform admin
// account. Run it once after migrations; re-running against an existing
// email is a no-op.
//
// Usage: ADMIN_EMAIL=... ADMIN_PASSWORD=... go run ./cmd/bootstrap-admin
package main

import (
	"context"
	"log"
	"os"

	"credired/internal/db"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	_ = godotenv.Load()

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}
	name := os.Getenv("ADMIN_NAME")
	if name == "" {
		name = "Administrator"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer pool.Close()

	tag, err := pool.Exec(ctx, `
		INSERT INTO accounts (name, email, password_hash, role, status, is_independent, invite_code)
		VALUES ($1, $2, $3, 'admin', 'active', TRUE, $4)
		ON CONFLICT (email) DO NOTHING`,
		name, email, string(hash), uuid.NewString())
	if err != nil {
		log.Fatalf("failed to insert admin account: %v", err)
	}

	if tag.RowsAffected() == 0 {
		log.Printf("account %s already exists, nothing to do", email)
		return
	}
	log.Printf("admin account %s created", email)
}
