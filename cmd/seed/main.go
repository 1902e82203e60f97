// seed bootstraps an initial administrator account. Idempotent: an existing
// username is reported, not overwritten.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"sarir/cmd/identity"
	"sarir/cmd/internal/app"
	"sarir/cmd/security/password"
)

func main() {
	username := flag.String("username", "admin", "Username for the bootstrap account")
	email := flag.String("email", "", "Optional email for the bootstrap account")
	fullName := flag.String("full-name", "", "Optional full name for the bootstrap account")
	superuser := flag.Bool("superuser", true, "Grant the account superuser rights")
	flag.Parse()

	if err := run(*username, *email, *fullName, *superuser); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run(username, email, fullName string, superuser bool) error {
	plain := os.Getenv("SARIR_SEED_PASSWORD")
	if plain == "" {
		return fmt.Errorf("SARIR_SEED_PASSWORD is not set")
	}

	cfg := app.LoadConfig()
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("SARIR_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := app.NewDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	hash, err := password.Hash(plain)
	if err != nil {
		return err
	}

	store, err := identity.NewPostgresStore(pool)
	if err != nil {
		return err
	}

	user, err := store.Create(ctx, identity.CreateUserInput{
		Username:     username,
		Email:        optional(email),
		FullName:     optional(fullName),
		PasswordHash: hash,
		IsSuperuser:  superuser,
	})
	if err != nil {
		if identity.IsConflict(err) {
			fmt.Printf("user %q already exists, nothing to do\n", username)
			return nil
		}
		return err
	}

	fmt.Printf("created user %q (public id %s)\n", user.Username, user.PublicID)
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
