// Package maintenance holds the global maintenance state consulted by every
// inbound request: an enabled flag, an operator message, and IP/email
// allow-lists merged with a configured baseline.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/captionloom/caption-server/internal/secrets"
)

// DocumentName is the singleton record in the config document store.
const DocumentName = "maintenance"

// DefaultCacheTTL bounds staleness of per-process reads. Writes always go
// through the store and drop the cache.
const DefaultCacheTTL = 10 * time.Second

type Config struct {
	Enabled       bool      `json:"enabled"`
	Message       string    `json:"message"`
	EstimatedTime string    `json:"estimated_time"`
	AllowedIPs    []string  `json:"allowed_ips"`
	AllowedEmails []string  `json:"allowed_emails"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Update is a partial config change; nil fields keep their current value.
// Allow-list fields replace the operator-added entries (the baseline is
// merged back in on every read and cannot be removed).
type Update struct {
	Enabled       *bool
	Message       *string
	EstimatedTime *string
	AllowedIPs    []string
	AllowedEmails []string
}

type DocumentStore interface {
	GetDocument(ctx context.Context, name string, out any) error
	UpsertDocument(ctx context.Context, name string, doc any) error
	DeleteDocument(ctx context.Context, name string) error
}

type Options struct {
	BaselineIPs    []string
	BaselineEmails []string
	CacheTTL       time.Duration
}

type Gate struct {
	store          DocumentStore
	baselineIPs    []string
	baselineEmails []string
	cacheTTL       time.Duration

	mu       sync.Mutex
	cached   *Config
	cachedAt time.Time
}

func NewGate(store DocumentStore, opts Options) *Gate {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return &Gate{
		store:          store,
		baselineIPs:    opts.BaselineIPs,
		baselineEmails: opts.BaselineEmails,
		cacheTTL:       opts.CacheTTL,
	}
}

// GetConfig returns the effective config with baseline allow-lists merged
// in. Reads are served from a short-lived per-process cache.
func (g *Gate) GetConfig(ctx context.Context) (Config, error) {
	g.mu.Lock()
	if g.cached != nil && time.Since(g.cachedAt) < g.cacheTTL {
		cfg := *g.cached
		g.mu.Unlock()
		return cfg, nil
	}
	g.mu.Unlock()

	cfg, err := g.load(ctx)
	if err != nil {
		return Config{}, err
	}

	g.mu.Lock()
	g.cached = &cfg
	g.cachedAt = time.Now()
	g.mu.Unlock()

	return cfg, nil
}

// SetConfig merges the update over the stored singleton, persists it, and
// returns the resulting effective config.
func (g *Gate) SetConfig(ctx context.Context, upd Update, actor string) (Config, error) {
	var stored Config
	err := g.store.GetDocument(ctx, DocumentName, &stored)
	if err != nil && !errors.Is(err, secrets.ErrDocumentNotFound) {
		return Config{}, fmt.Errorf("load maintenance config: %w", err)
	}

	if upd.Enabled != nil {
		stored.Enabled = *upd.Enabled
	}
	if upd.Message != nil {
		stored.Message = *upd.Message
	}
	if upd.EstimatedTime != nil {
		stored.EstimatedTime = *upd.EstimatedTime
	}
	if upd.AllowedIPs != nil {
		stored.AllowedIPs = MergeAllowlists(nil, upd.AllowedIPs)
	}
	if upd.AllowedEmails != nil {
		stored.AllowedEmails = MergeAllowlists(nil, upd.AllowedEmails)
	}
	stored.UpdatedAt = time.Now()

	if err := g.store.UpsertDocument(ctx, DocumentName, stored); err != nil {
		return Config{}, fmt.Errorf("store maintenance config: %w", err)
	}

	g.invalidate()

	slog.Info("Maintenance config updated",
		"actor", actor,
		"enabled", stored.Enabled,
		"allowed_ips", len(stored.AllowedIPs),
		"allowed_emails", len(stored.AllowedEmails))

	return g.effective(stored), nil
}

// Clear removes the singleton, reverting to disabled with baseline
// allow-lists.
func (g *Gate) Clear(ctx context.Context, actor string) error {
	if err := g.store.DeleteDocument(ctx, DocumentName); err != nil {
		return fmt.Errorf("clear maintenance config: %w", err)
	}
	g.invalidate()

	slog.Info("Maintenance config cleared", "actor", actor)
	return nil
}

// IsAllowed reports whether a request with the given client IP and
// authenticated email may pass the gate. Store failures fail closed: an
// unreadable config blocks rather than silently opening access.
func (g *Gate) IsAllowed(ctx context.Context, ip, email string) bool {
	cfg, err := g.GetConfig(ctx)
	if err != nil {
		slog.Error("Maintenance config unavailable, failing closed", "error", err)
		return false
	}

	if !cfg.Enabled {
		return true
	}
	if ip != "" && contains(cfg.AllowedIPs, ip) {
		return true
	}
	if email != "" && contains(cfg.AllowedEmails, email) {
		return true
	}
	return false
}

// IsEmailAllowed reports whether the email is on the effective allow-list,
// independent of whether maintenance is currently enabled.
func (g *Gate) IsEmailAllowed(ctx context.Context, email string) (bool, error) {
	cfg, err := g.GetConfig(ctx)
	if err != nil {
		return false, err
	}
	return contains(cfg.AllowedEmails, email), nil
}

// Status returns the config for rendering the maintenance page. Unlike
// IsAllowed it fails open on store errors so a transient outage does not
// brick the site with an unrenderable page.
func (g *Gate) Status(ctx context.Context) Config {
	cfg, err := g.GetConfig(ctx)
	if err != nil {
		slog.Error("Maintenance config unavailable, failing open for status", "error", err)
		return g.effective(Config{})
	}
	return cfg
}

func (g *Gate) load(ctx context.Context) (Config, error) {
	var stored Config
	err := g.store.GetDocument(ctx, DocumentName, &stored)
	if err != nil {
		if errors.Is(err, secrets.ErrDocumentNotFound) {
			return g.effective(Config{}), nil
		}
		return Config{}, fmt.Errorf("load maintenance config: %w", err)
	}
	return g.effective(stored), nil
}

func (g *Gate) effective(stored Config) Config {
	stored.AllowedIPs = MergeAllowlists(g.baselineIPs, stored.AllowedIPs)
	stored.AllowedEmails = MergeAllowlists(g.baselineEmails, stored.AllowedEmails)
	return stored
}

func (g *Gate) invalidate() {
	g.mu.Lock()
	g.cached = nil
	g.mu.Unlock()
}

func contains(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}
