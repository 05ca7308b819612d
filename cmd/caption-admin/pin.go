package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/captionloom/caption-server/internal/db"
	"github.com/captionloom/caption-server/internal/secrets"
	"github.com/captionloom/caption-server/internal/systemlock"
)

func runSetPin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-pin", flag.ExitOnError)
	pin := fs.String("pin", "", "New PIN (4 to 6 digits)")
	change := fs.Bool("change", false, "Rotate an existing PIN (requires --current)")
	current := fs.String("current", "", "Current PIN, required with --change")
	actor := fs.String("actor", defaultActor(), "Operator recorded in the audit fields")
	dbURL := fs.String("db-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	schema := fs.String("schema", "", "Database schema")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *pin == "" {
		return fmt.Errorf("--pin is required")
	}
	if !systemlock.ValidPinFormat(*pin) {
		return fmt.Errorf("pin must be 4 to 6 digits")
	}
	if *change && *current == "" {
		return fmt.Errorf("--current is required with --change")
	}

	lock, cleanup, err := openLock(ctx, *dbURL, *schema)
	if err != nil {
		return err
	}
	defer cleanup()

	if *change {
		err = lock.ChangePin(ctx, *current, *pin, *actor)
	} else {
		status, statusErr := lock.Status(ctx)
		if statusErr != nil {
			return statusErr
		}
		if status.Locked {
			return fmt.Errorf("a pin is already set; use --change with --current to rotate it")
		}
		err = lock.SetPin(ctx, *pin, *actor)
	}
	if err != nil {
		switch {
		case errors.Is(err, systemlock.ErrIncorrectCurrentPin):
			return fmt.Errorf("current pin does not match")
		case errors.Is(err, systemlock.ErrNotConfigured):
			return fmt.Errorf("no pin is set; run set-pin without --change")
		}
		return err
	}

	fmt.Println("PIN updated")
	return nil
}

func runDisablePin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("disable-pin", flag.ExitOnError)
	actor := fs.String("actor", defaultActor(), "Operator recorded in the audit fields")
	dbURL := fs.String("db-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	schema := fs.String("schema", "", "Database schema")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lock, cleanup, err := openLock(ctx, *dbURL, *schema)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := lock.Disable(ctx, *actor); err != nil {
		if errors.Is(err, systemlock.ErrNotConfigured) {
			return fmt.Errorf("no pin is set")
		}
		return err
	}

	fmt.Println("PIN disabled; bootstrap endpoints will refuse until a new pin is set")
	return nil
}

func openLock(ctx context.Context, dbURL, schema string) (*systemlock.Service, func(), error) {
	if dbURL == "" {
		return nil, nil, fmt.Errorf("--db-url or DATABASE_URL is required")
	}

	pool, err := db.InitDB(ctx, dbURL, schema)
	if err != nil {
		return nil, nil, err
	}
	return systemlock.NewService(secrets.NewPgStore(pool)), pool.Close, nil
}

func defaultActor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "operator"
}
