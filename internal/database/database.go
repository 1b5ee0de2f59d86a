package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mediarelay/internal/models"
	"mediarelay/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database persists the queue snapshot, the dedup ledger and the display
// metadata cache. The snapshot tables are replaced wholesale on every save;
// the in-memory state is authoritative while the process runs.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(initialSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveQueueSnapshot atomically replaces the stored pending items and dedup
// fingerprints with the given state.
func (d *Database) SaveQueueSnapshot(ctx context.Context, items []*models.PendingItem, fingerprints []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deletePendingItemsQuery); err != nil {
		return fmt.Errorf("failed to clear pending items: %w", err)
	}
	for i, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
		}
		stored, err := d.encryptor.Encrypt(string(payload))
		if err != nil {
			return fmt.Errorf("failed to encrypt item %s: %w", item.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insertPendingItemQuery,
			item.ID, string(item.Kind), stored, item.SourceMessageID, item.CreatedAt, i); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, deleteDedupLedgerQuery); err != nil {
		return fmt.Errorf("failed to clear dedup ledger: %w", err)
	}
	for i, fp := range fingerprints {
		if _, err := tx.ExecContext(ctx, insertFingerprintQuery, fp, i); err != nil {
			return fmt.Errorf("failed to insert fingerprint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadQueueSnapshot restores pending items and dedup fingerprints in their
// stored order.
func (d *Database) LoadQueueSnapshot(ctx context.Context) ([]*models.PendingItem, []string, error) {
	rows, err := d.db.QueryContext(ctx, selectPendingItemsQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query pending items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*models.PendingItem
	for rows.Next() {
		var stored string
		if err := rows.Scan(&stored); err != nil {
			return nil, nil, fmt.Errorf("failed to scan pending item: %w", err)
		}
		payload, err := d.encryptor.Decrypt(stored)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decrypt pending item: %w", err)
		}
		var item models.PendingItem
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, nil, fmt.Errorf("failed to decode pending item: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate pending items: %w", err)
	}

	fpRows, err := d.db.QueryContext(ctx, selectFingerprintsQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query dedup ledger: %w", err)
	}
	defer func() { _ = fpRows.Close() }()

	var fingerprints []string
	for fpRows.Next() {
		var fp string
		if err := fpRows.Scan(&fp); err != nil {
			return nil, nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fingerprints = append(fingerprints, fp)
	}
	if err := fpRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate dedup ledger: %w", err)
	}

	return items, fingerprints, nil
}

// SaveDisplayMeta upserts a display-metadata cache entry.
func (d *Database) SaveDisplayMeta(ctx context.Context, meta *models.DisplayMeta) error {
	cachedAt := meta.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}
	if _, err := d.db.ExecContext(ctx, upsertDisplayMetaQuery,
		meta.ID, string(meta.Kind), meta.Name, meta.AvatarURL, cachedAt); err != nil {
		return fmt.Errorf("failed to save display meta: %w", err)
	}
	return nil
}

// GetDisplayMeta returns the cached entry for an id, or nil when absent.
func (d *Database) GetDisplayMeta(ctx context.Context, id int64, kind models.MetaKind) (*models.DisplayMeta, error) {
	var meta models.DisplayMeta
	var kindStr string
	err := d.db.QueryRowContext(ctx, selectDisplayMetaQuery, id, string(kind)).
		Scan(&meta.ID, &kindStr, &meta.Name, &meta.AvatarURL, &meta.CachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query display meta: %w", err)
	}
	meta.Kind = models.MetaKind(kindStr)
	return &meta, nil
}

// ListDisplayMeta returns every cached display-metadata entry.
func (d *Database) ListDisplayMeta(ctx context.Context) ([]*models.DisplayMeta, error) {
	rows, err := d.db.QueryContext(ctx, selectAllDisplayMetaQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query display meta: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.DisplayMeta
	for rows.Next() {
		var meta models.DisplayMeta
		var kindStr string
		if err := rows.Scan(&meta.ID, &kindStr, &meta.Name, &meta.AvatarURL, &meta.CachedAt); err != nil {
			return nil, fmt.Errorf("failed to scan display meta: %w", err)
		}
		meta.Kind = models.MetaKind(kindStr)
		out = append(out, &meta)
	}
	return out, rows.Err()
}
