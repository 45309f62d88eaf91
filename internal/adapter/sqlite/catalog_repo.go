package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vertextoedge/media-frame-cache/internal/domain"
	"github.com/vertextoedge/media-frame-cache/internal/port"
)

// CatalogRepo implements port.CatalogRepository
type CatalogRepo struct {
	db *sql.DB
}

// Ensure CatalogRepo implements port.CatalogRepository
var _ port.CatalogRepository = (*CatalogRepo)(nil)

const catalogColumns = `id, pattern, directory, kind, extension, padding,
	start_frame, end_frame, frames, missing, scanned_at, created_at, updated_at`

// Upsert inserts or updates an entry keyed by its pattern
func (r *CatalogRepo) Upsert(entry *domain.CatalogEntry) error {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ScannedAt.IsZero() {
		entry.ScannedAt = now
	}

	query := `
		INSERT INTO sequences (` + catalogColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			directory = excluded.directory,
			kind = excluded.kind,
			extension = excluded.extension,
			padding = excluded.padding,
			start_frame = excluded.start_frame,
			end_frame = excluded.end_frame,
			frames = excluded.frames,
			missing = excluded.missing,
			scanned_at = excluded.scanned_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		entry.ID, entry.Pattern, entry.Directory, entry.Kind, entry.Extension, entry.Padding,
		entry.Start, entry.End, entry.Frames, entry.Missing, entry.ScannedAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert sequence %s: %w", entry.Pattern, err)
	}

	// An existing row keeps its id and creation time.
	stored, err := r.GetByPattern(entry.Pattern)
	if err != nil {
		return err
	}
	if stored != nil {
		entry.ID = stored.ID
		entry.CreatedAt = stored.CreatedAt
		entry.UpdatedAt = stored.UpdatedAt
	}
	return nil
}

// Get retrieves an entry by ID. Returns nil, nil when absent.
func (r *CatalogRepo) Get(id string) (*domain.CatalogEntry, error) {
	return r.queryOne(`SELECT `+catalogColumns+` FROM sequences WHERE id = ?`, id)
}

// GetByPattern retrieves an entry by its pattern. Returns nil, nil when absent.
func (r *CatalogRepo) GetByPattern(pattern string) (*domain.CatalogEntry, error) {
	return r.queryOne(`SELECT `+catalogColumns+` FROM sequences WHERE pattern = ?`, pattern)
}

func (r *CatalogRepo) queryOne(query string, arg any) (*domain.CatalogEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns entries ordered by pattern, optionally filtered by kind
func (r *CatalogRepo) List(kind string, limit int) ([]*domain.CatalogEntry, error) {
	query := `SELECT ` + catalogColumns + ` FROM sequences`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY pattern`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes an entry
func (r *CatalogRepo) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM sequences WHERE id = ?`, id)
	return err
}

// Count returns the number of entries
func (r *CatalogRepo) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sequences`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.CatalogEntry, error) {
	e := &domain.CatalogEntry{}
	err := row.Scan(
		&e.ID, &e.Pattern, &e.Directory, &e.Kind, &e.Extension, &e.Padding,
		&e.Start, &e.End, &e.Frames, &e.Missing, &e.ScannedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}
