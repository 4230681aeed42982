package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/bobarin/clipforge/internal/models"
)

// The catalog is one row per owner holding the ordered video list as a JSON
// document. Reads tolerate a corrupt document by treating it as empty.
// Writes run read-modify-write inside a transaction with a row lock so
// concurrent publishes for the same owner serialize instead of losing
// records.

// ReadCatalog returns the owner's videos, creating an empty catalog row if
// none exists yet.
func (db *DB) ReadCatalog(ctx context.Context, ownerID string) ([]models.VideoRecord, error) {
	var raw string
	err := db.QueryRowContext(ctx,
		`SELECT video_arr FROM catalogs WHERE owner_id = $1`, ownerID,
	).Scan(&raw)

	if err == sql.ErrNoRows {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO catalogs (owner_id, video_arr) VALUES ($1, $2) ON CONFLICT (owner_id) DO NOTHING`,
			ownerID, "[]",
		); err != nil {
			return nil, fmt.Errorf("failed to create catalog: %w", err)
		}
		return []models.VideoRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	return parseCatalog(ownerID, raw), nil
}

// AppendVideo adds a record to the end of the owner's catalog.
func (db *DB) AppendVideo(ctx context.Context, ownerID string, record models.VideoRecord) error {
	return db.updateCatalog(ctx, ownerID, func(videos []models.VideoRecord) ([]models.VideoRecord, error) {
		return append(videos, record), nil
	})
}

// RemoveVideo deletes the record matching videoKey and returns the removed
// record plus the remaining catalog. Removes at most one record; an unknown
// key returns models.ErrVideoNotFound with the catalog untouched.
func (db *DB) RemoveVideo(ctx context.Context, ownerID, videoKey string) (models.VideoRecord, []models.VideoRecord, error) {
	var removed models.VideoRecord
	var remaining []models.VideoRecord
	err := db.updateCatalog(ctx, ownerID, func(videos []models.VideoRecord) ([]models.VideoRecord, error) {
		idx := -1
		for i, v := range videos {
			if v.VideoKey == videoKey {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, models.ErrVideoNotFound
		}
		removed = videos[idx]
		remaining = append(videos[:idx:idx], videos[idx+1:]...)
		return remaining, nil
	})
	if err != nil {
		return models.VideoRecord{}, nil, err
	}
	return removed, remaining, nil
}

// updateCatalog runs mutate over the owner's video list under a row lock.
func (db *DB) updateCatalog(ctx context.Context, ownerID string, mutate func([]models.VideoRecord) ([]models.VideoRecord, error)) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin catalog update: %w", err)
	}
	defer tx.Rollback()

	// Ensure the row exists so FOR UPDATE has something to lock.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalogs (owner_id, video_arr) VALUES ($1, $2) ON CONFLICT (owner_id) DO NOTHING`,
		ownerID, "[]",
	); err != nil {
		return fmt.Errorf("failed to ensure catalog: %w", err)
	}

	var raw string
	if err := tx.QueryRowContext(ctx,
		`SELECT video_arr FROM catalogs WHERE owner_id = $1 FOR UPDATE`, ownerID,
	).Scan(&raw); err != nil {
		return fmt.Errorf("failed to lock catalog: %w", err)
	}

	updated, err := mutate(parseCatalog(ownerID, raw))
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE catalogs SET video_arr = $1 WHERE owner_id = $2`,
		string(encoded), ownerID,
	); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	return tx.Commit()
}

// parseCatalog decodes the stored document. A document that fails to parse
// is logged and treated as an empty catalog.
func parseCatalog(ownerID, raw string) []models.VideoRecord {
	if raw == "" {
		return []models.VideoRecord{}
	}

	var videos []models.VideoRecord
	if err := json.Unmarshal([]byte(raw), &videos); err != nil {
		log.Printf("[Catalog] unparsable catalog for owner %s, treating as empty: %v", ownerID, err)
		return []models.VideoRecord{}
	}
	if videos == nil {
		return []models.VideoRecord{}
	}
	return videos
}
