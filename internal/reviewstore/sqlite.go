package reviewstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joescharf/triage/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
// This is the durable production store: records survive process restarts and
// are shared by every handler invocation on the host.
type SQLiteStore struct {
	db *sql.DB

	// now is replaceable in tests to exercise expiry.
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, review *models.ReviewRequest, ttl time.Duration) error {
	payload, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("marshal review: %w", err)
	}
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, payload, created_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload=excluded.payload, expires_at=excluded.expires_at`,
		review.ID, string(payload), now, now.Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("put review: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.ReviewRequest, error) {
	var payload string
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, expires_at FROM reviews WHERE id = ?", id,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}

	if !expiresAt.After(s.now().UTC()) {
		// Lazy eviction; a dedicated sweeper is unnecessary at this volume.
		_, _ = s.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", id)
		return nil, ErrNotFound
	}

	review := &models.ReviewRequest{}
	if err := json.Unmarshal([]byte(payload), review); err != nil {
		return nil, fmt.Errorf("unmarshal review %s: %w", id, err)
	}
	return review, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*models.ReviewRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM reviews WHERE expires_at > ? ORDER BY created_at DESC", s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviews []*models.ReviewRequest
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		review := &models.ReviewRequest{}
		if err := json.Unmarshal([]byte(payload), review); err != nil {
			return nil, fmt.Errorf("unmarshal review: %w", err)
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}
