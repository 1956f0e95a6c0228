package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/institute-cms-api/internal/models"
)

// ErrVersionMismatch signals that an optimistic concurrency check failed.
var ErrVersionMismatch = errors.New("document version mismatch")

// EventsDocumentRepository persists the singleton events page row.
type EventsDocumentRepository struct {
	db *sqlx.DB
}

// NewEventsDocumentRepository constructs the repository.
func NewEventsDocumentRepository(db *sqlx.DB) *EventsDocumentRepository {
	return &EventsDocumentRepository{db: db}
}

// GetOrCreate loads the singleton row, inserting an empty default on first access.
func (r *EventsDocumentRepository) GetOrCreate(ctx context.Context) (*models.EventsDocument, error) {
	doc, err := r.get(ctx)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	const insert = `INSERT INTO events_documents (id, title, rich_content, banner_image_url, legacy_gallery_urls, version, created_at, updated_at)
VALUES ($1, '', '', '', '{}', 1, $2, $2)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, models.EventsDocumentID, now); err != nil {
		return nil, fmt.Errorf("create events document: %w", err)
	}
	return r.get(ctx)
}

func (r *EventsDocumentRepository) get(ctx context.Context) (*models.EventsDocument, error) {
	const query = `SELECT id, title, rich_content, banner_image_url, legacy_gallery_urls, version, created_at, updated_at
FROM events_documents WHERE id = $1`
	var doc models.EventsDocument
	if err := r.db.GetContext(ctx, &doc, query, models.EventsDocumentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get events document: %w", err)
	}
	return &doc, nil
}

// UpdateFields writes the scalar document columns and bumps the version.
// When expectedVersion is non-nil the update only applies if the stored
// version still matches; otherwise ErrVersionMismatch is returned.
func (r *EventsDocumentRepository) UpdateFields(ctx context.Context, doc *models.EventsDocument, expectedVersion *int64) error {
	doc.UpdatedAt = time.Now().UTC()

	query := `UPDATE events_documents
SET title = $2, rich_content = $3, banner_image_url = $4, legacy_gallery_urls = $5,
    version = version + 1, updated_at = $6
WHERE id = $1`
	args := []interface{}{
		models.EventsDocumentID,
		doc.Title,
		doc.RichContent,
		doc.BannerImageURL,
		doc.LegacyGalleryURLs,
		doc.UpdatedAt,
	}
	if expectedVersion != nil {
		query += fmt.Sprintf(" AND version = $%d", len(args)+1)
		args = append(args, *expectedVersion)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update events document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check events document update rows: %w", err)
	}
	if affected == 0 {
		if expectedVersion != nil {
			return ErrVersionMismatch
		}
		return sql.ErrNoRows
	}
	return nil
}

// UpdateBanner sets the banner image URL unconditionally.
func (r *EventsDocumentRepository) UpdateBanner(ctx context.Context, url string) error {
	const query = `UPDATE events_documents
SET banner_image_url = $2, version = version + 1, updated_at = $3
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, models.EventsDocumentID, url, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update banner: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check banner update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Touch bumps the document version after a child-table mutation so that
// whole-document writers holding a stale version are rejected.
func (r *EventsDocumentRepository) Touch(ctx context.Context) error {
	const query = `UPDATE events_documents SET version = version + 1, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, models.EventsDocumentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch events document: %w", err)
	}
	return nil
}
