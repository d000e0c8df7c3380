// Command seeder imports users from a JSON file (-i) or deletes every user
// (-d).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/database"
	"github.com/iliyamo/slot-booking/internal/logger"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
)

type seedUser struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// readUsers decodes and validates a seed file.  A missing role means user.
func readUsers(r io.Reader) ([]seedUser, error) {
	var users []seedUser
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	for i := range users {
		u := &users[i]
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		u.Name = strings.TrimSpace(u.Name)
		if u.Role == "" {
			u.Role = model.RoleUser
		}
		if err := v.Struct(u); err != nil {
			return nil, fmt.Errorf("user %d: %w", i, err)
		}
	}
	return users, nil
}

type userWriter interface {
	Create(ctx context.Context, name, email, password, role string, cost int) (uint64, error)
}

// importUsers creates every user, skipping emails that already exist.  It
// returns how many were created.
func importUsers(ctx context.Context, w userWriter, users []seedUser, cost int, log *zap.Logger) (int, error) {
	created := 0
	for _, u := range users {
		_, err := w.Create(ctx, u.Name, u.Email, u.Password, u.Role, cost)
		if errors.Is(err, repository.ErrEmailExists) {
			log.Info("user exists, skipped", zap.String("email", u.Email))
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create %s: %w", u.Email, err)
		}
		created++
	}
	return created, nil
}

func main() {
	in := flag.String("i", "", "import users from this JSON file")
	del := flag.Bool("d", false, "delete all users")
	flag.Parse()

	if (*in == "") == !*del {
		fmt.Fprintln(os.Stderr, "usage: seeder -i users.json | seeder -d")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, *in, *del); err != nil {
		log.Fatal("seeder failed", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger, in string, del bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	repo := repository.NewUserRepo(db)

	if del {
		n, err := repo.DeleteAll(ctx)
		if err != nil {
			return err
		}
		log.Info("users deleted", zap.Int64("count", n))
		return nil
	}

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()
	users, err := readUsers(f)
	if err != nil {
		return err
	}
	n, err := importUsers(ctx, repo, users, cfg.BcryptCost, log)
	if err != nil {
		return err
	}
	log.Info("users imported", zap.Int("created", n), zap.Int("in_file", len(users)))
	return nil
}
