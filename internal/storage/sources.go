package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/vocadeck/internal/domain"
)

type sourceRow struct {
	ID          int64        `db:"id"`
	Deck        string       `db:"deck"`
	Path        string       `db:"path"`
	Type        string       `db:"type"`
	LastScanned sql.NullTime `db:"last_scanned"`
}

func (r sourceRow) source() domain.Source {
	s := domain.Source{ID: r.ID, Deck: r.Deck, Path: r.Path, Type: domain.SourceType(r.Type)}
	if r.LastScanned.Valid {
		t := r.LastScanned.Time
		s.LastScanned = &t
	}
	return s
}

// InsertSource attaches a word-list location to deck and returns its ID.
func (db *DB) InsertSource(ctx context.Context, deck, path string, typ domain.SourceType) (int64, error) {
	if err := db.deckExists(ctx, db.conn, deck); err != nil {
		return 0, err
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (deck, path, type) VALUES (?, ?, ?)
	`, deck, path, string(typ))
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// ListSources returns every stored source.
func (db *DB) ListSources(ctx context.Context) ([]domain.Source, error) {
	var rows []sourceRow
	if err := db.conn.SelectContext(ctx, &rows, `
		SELECT id, deck, path, type, last_scanned FROM sources ORDER BY id
	`); err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	sources := make([]domain.Source, 0, len(rows))
	for _, r := range rows {
		sources = append(sources, r.source())
	}
	return sources, nil
}

// UpdateSourceLastScanned records when a source was last synced.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, id int64, at time.Time) error {
	if _, err := db.conn.ExecContext(ctx, `
		UPDATE sources SET last_scanned = ? WHERE id = ?
	`, at, id); err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", id, err)
	}
	return nil
}

// DeleteSource removes a source. Words already synced from it are kept.
func (db *DB) DeleteSource(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete source ID %d: %w", id, err)
	}
	return nil
}
