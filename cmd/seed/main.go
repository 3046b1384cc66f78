// Command seed provisions the seat layout and two starter accounts.  It is
// safe to run repeatedly: existing seats and accounts are left alone.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/bookmyseat/internal/config"
	"github.com/iliyamo/bookmyseat/internal/database"
	"github.com/iliyamo/bookmyseat/internal/model"
	"github.com/iliyamo/bookmyseat/internal/repository"
	"github.com/iliyamo/bookmyseat/internal/seats"
)

type account struct {
	name, email, roll, password, role string
}

func main() {
	adminPass := flag.String("admin-password", "", "password of the seeded admin (ADMIN_PASSWORD)")
	studentPass := flag.String("student-password", "student-pass", "password of the sample student")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env: %v", err)
	}
	cfg := config.LoadSeed()
	if *adminPass == "" {
		*adminPass = os.Getenv("ADMIN_PASSWORD")
	}
	if *adminPass == "" {
		log.Fatal("seed: admin password required (-admin-password or ADMIN_PASSWORD)")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("seed: open: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("seed: migrate: %v", err)
	}

	n, err := repository.NewSeatRepo(db).CreateBulk(ctx, seats.Layout())
	if err != nil {
		log.Fatalf("seed: seats: %v", err)
	}
	log.Printf("seed: %d seats created", n)

	users := repository.NewUserRepo(db)
	for _, a := range []account{
		{"Library Desk", "admin@library.local", "ADMIN-001", *adminPass, model.RoleAdmin},
		{"Sample Student", "student@library.local", "STU-0001", *studentPass, model.RoleStudent},
	} {
		id, err := users.Create(ctx, a.name, a.email, a.roll, a.password, a.role, cfg.BcryptCost)
		switch {
		case errors.Is(err, repository.ErrEmailExists), errors.Is(err, repository.ErrRollExists):
			log.Printf("seed: %s exists, skipped", a.email)
		case err != nil:
			log.Fatalf("seed: user %s: %v", a.email, err)
		default:
			log.Printf("seed: %s %s created (id=%d)", a.role, a.email, id)
		}
	}
}
