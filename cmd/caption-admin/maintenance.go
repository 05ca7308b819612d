package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/captionloom/caption-server/internal/db"
	"github.com/captionloom/caption-server/internal/maintenance"
	"github.com/captionloom/caption-server/internal/secrets"
)

func runMaintenance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("maintenance", flag.ExitOnError)
	enable := fs.Bool("enable", false, "Enable maintenance mode")
	disable := fs.Bool("disable", false, "Disable maintenance mode")
	clear := fs.Bool("clear", false, "Remove the stored maintenance config entirely")
	message := fs.String("message", "", "Message shown on the maintenance page")
	estimate := fs.String("estimate", "", "Estimated completion shown on the maintenance page")
	allowIPs := fs.String("allow-ips", "", "Comma separated IP allow-list")
	allowEmails := fs.String("allow-emails", "", "Comma separated email allow-list")
	actor := fs.String("actor", defaultActor(), "Operator recorded in the audit log")
	dbURL := fs.String("db-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	schema := fs.String("schema", "", "Database schema")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *enable && *disable {
		return fmt.Errorf("--enable and --disable are mutually exclusive")
	}

	if *dbURL == "" {
		return fmt.Errorf("--db-url or DATABASE_URL is required")
	}

	pool, err := db.InitDB(ctx, *dbURL, *schema)
	if err != nil {
		return err
	}
	defer pool.Close()

	gate := maintenance.NewGate(secrets.NewPgStore(pool), maintenance.Options{})

	if *clear {
		if err := gate.Clear(ctx, *actor); err != nil {
			return err
		}
		fmt.Println("Maintenance config cleared")
		return nil
	}

	upd := maintenance.Update{}
	changed := false
	if *enable {
		v := true
		upd.Enabled = &v
		changed = true
	}
	if *disable {
		v := false
		upd.Enabled = &v
		changed = true
	}
	if *message != "" {
		upd.Message = message
		changed = true
	}
	if *estimate != "" {
		upd.EstimatedTime = estimate
		changed = true
	}
	if *allowIPs != "" {
		upd.AllowedIPs = splitList(*allowIPs)
		changed = true
	}
	if *allowEmails != "" {
		upd.AllowedEmails = splitList(*allowEmails)
		changed = true
	}

	if changed {
		cfg, err := gate.SetConfig(ctx, upd, *actor)
		if err != nil {
			return err
		}
		printConfig(cfg)
		return nil
	}

	cfg, err := gate.GetConfig(ctx)
	if err != nil {
		return err
	}
	printConfig(cfg)
	return nil
}

func printConfig(cfg maintenance.Config) {
	state := "disabled"
	if cfg.Enabled {
		state = "enabled"
	}
	fmt.Printf("Maintenance: %s\n", state)
	if cfg.Message != "" {
		fmt.Printf("Message:     %s\n", cfg.Message)
	}
	if cfg.EstimatedTime != "" {
		fmt.Printf("Estimate:    %s\n", cfg.EstimatedTime)
	}
	fmt.Printf("Allowed IPs:    %s\n", strings.Join(cfg.AllowedIPs, ", "))
	fmt.Printf("Allowed emails: %s\n", strings.Join(cfg.AllowedEmails, ", "))
	if !cfg.UpdatedAt.IsZero() {
		fmt.Printf("Updated at:     %s\n", cfg.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
