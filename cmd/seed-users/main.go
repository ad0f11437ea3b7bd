package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/database"
	"github.com/archprep/mockportal-backend/internal/logger"
	"github.com/archprep/mockportal-backend/internal/model"
	"github.com/archprep/mockportal-backend/internal/repository"
)

func main() {
	var adminEmail string
	var studentCount int
	flag.StringVar(&adminEmail, "admin", "admin@mockportal.local", "Admin account email")
	flag.IntVar(&studentCount, "students", 20, "Number of demo student accounts")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	users := repository.NewUserRepository(pool)

	// Admin password is read from the terminal so it never lands in shell
	// history or env files.
	fmt.Printf("Password for %s: ", adminEmail)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read password")
	}
	if len(password) < 8 {
		log.Fatal().Msg("Password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword(password, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	admin := &model.UserAccount{
		Email:        adminEmail,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		Approved:     true,
	}
	if err := users.Create(ctx, admin); err != nil {
		fmt.Printf("Admin %s not created (may already exist): %v\n", adminEmail, err)
	} else {
		fmt.Printf("Created admin %s (id %d)\n", admin.Email, admin.ID)
	}

	fmt.Printf("=== Seeding %d demo students ===\n", studentCount)

	successCount := 0
	for i := 1; i <= studentCount; i++ {
		email := fmt.Sprintf("student%d@mockportal.local", i)
		studentHash, err := bcrypt.GenerateFromPassword([]byte(fmt.Sprintf("student%d-pass", i)), cfg.BcryptCost)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hash student password")
		}

		student := &model.UserAccount{
			Email:        email,
			PasswordHash: string(studentHash),
			Role:         model.RoleStudent,
			Approved:     true,
		}
		if err := users.Create(ctx, student); err != nil {
			fmt.Printf("Error creating %s: %v\n", email, err)
			continue
		}
		successCount++
		if i%10 == 0 {
			fmt.Printf("Created %d students...\n", i)
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d students.\n", successCount, studentCount)
}
