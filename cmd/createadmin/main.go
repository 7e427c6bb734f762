package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/config"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/crypto"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/db"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/model"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/repository"
)

// createadmin seeds (or promotes) an administrator account so a fresh
// deployment has someone who can reach the admin endpoints.
func main() {
	username := flag.String("username", "admin", "admin username")
	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "admin password")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("usage: createadmin -username admin -email admin@example.com -password secret")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg := config.Load()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	store := repository.NewStore(pool)

	hash, err := crypto.HashPasswordCost(*password, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	user := model.User{
		ID:             uuid.NewString(),
		Username:       *username,
		Email:          *email,
		PasswordHash:   hash,
		Role:           model.RoleAdmin,
		Active:         true,
		EnrollmentDate: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = store.CreateUser(ctx, user)
	switch {
	case err == nil:
		log.Printf("created admin %s", *username)
	case errors.Is(err, repository.ErrUsernameTaken):
		if _, err := store.UpdateUserRole(ctx, *username, model.RoleAdmin, now); err != nil {
			log.Fatalf("promote existing user: %v", err)
		}
		log.Printf("promoted existing user %s to admin", *username)
	default:
		log.Fatalf("create admin: %v", err)
	}
}
