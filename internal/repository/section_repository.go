package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/institute-cms-api/internal/models"
)

// SectionRepository persists sections and their images as normalized child
// tables of the events document.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// ListByDocument returns all sections with their images in insertion order.
func (r *SectionRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Section, error) {
	const sectionQuery = `SELECT id, document_id, name, title, position, created_at, updated_at
FROM events_sections WHERE document_id = $1 ORDER BY position ASC`
	sections := make([]models.Section, 0)
	if err := r.db.SelectContext(ctx, &sections, sectionQuery, documentID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	if len(sections) == 0 {
		return sections, nil
	}

	const imageQuery = `SELECT i.id, i.section_id, i.url, i.title, i.description, i.position, i.created_at
FROM events_section_images i
JOIN events_sections s ON s.id = i.section_id
WHERE s.document_id = $1
ORDER BY i.section_id, i.position ASC`
	var images []models.Image
	if err := r.db.SelectContext(ctx, &images, imageQuery, documentID); err != nil {
		return nil, fmt.Errorf("list section images: %w", err)
	}

	bySection := make(map[string][]models.Image, len(sections))
	for _, img := range images {
		bySection[img.SectionID] = append(bySection[img.SectionID], img)
	}
	for i := range sections {
		imgs := bySection[sections[i].ID]
		if imgs == nil {
			imgs = make([]models.Image, 0)
		}
		sections[i].Images = imgs
	}
	return sections, nil
}

// Get returns a single section with its images.
func (r *SectionRepository) Get(ctx context.Context, sectionID string) (*models.Section, error) {
	const query = `SELECT id, document_id, name, title, position, created_at, updated_at
FROM events_sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get section: %w", err)
	}

	const imageQuery = `SELECT id, section_id, url, title, description, position, created_at
FROM events_section_images WHERE section_id = $1 ORDER BY position ASC`
	images := make([]models.Image, 0)
	if err := r.db.SelectContext(ctx, &images, imageQuery, sectionID); err != nil {
		return nil, fmt.Errorf("get section images: %w", err)
	}
	section.Images = images
	return &section, nil
}

// Create appends a new section at the end of the document's section list.
func (r *SectionRepository) Create(ctx context.Context, documentID, name string, title *string) (*models.Section, error) {
	now := time.Now().UTC()
	section := &models.Section{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Name:       name,
		Title:      title,
		Images:     make([]models.Image, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	const query = `INSERT INTO events_sections (id, document_id, name, title, position, created_at, updated_at)
VALUES ($1, $2, $3, $4,
        (SELECT COALESCE(MAX(position) + 1, 0) FROM events_sections WHERE document_id = $2),
        $5, $5)
RETURNING position`
	if err := r.db.GetContext(ctx, &section.Position, query, section.ID, documentID, name, title, now); err != nil {
		return nil, fmt.Errorf("create section: %w", err)
	}
	return section, nil
}

// Rename updates the name and title of an existing section.
func (r *SectionRepository) Rename(ctx context.Context, sectionID, name string, title *string) (*models.Section, error) {
	const query = `UPDATE events_sections SET name = $2, title = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, sectionID, name, title, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("rename section: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rename rows: %w", err)
	}
	if affected == 0 {
		return nil, sql.ErrNoRows
	}
	return r.Get(ctx, sectionID)
}

// Delete removes a section and cascades to its images. It reports whether a
// row was actually removed so callers can keep delete idempotent.
func (r *SectionRepository) Delete(ctx context.Context, sectionID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin section delete tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events_section_images WHERE section_id = $1`, sectionID); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("delete section images: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM events_sections WHERE id = $1`, sectionID)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("delete section: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("check section delete rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit section delete tx: %w", err)
	}
	return affected > 0, nil
}

// AddImages appends images to a section in the given order.
func (r *SectionRepository) AddImages(ctx context.Context, sectionID string, inputs []models.NewImage) ([]models.Image, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin add images tx: %w", err)
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM events_sections WHERE id = $1)`, sectionID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("check section exists: %w", err)
	}
	if !exists {
		_ = tx.Rollback()
		return nil, sql.ErrNoRows
	}

	var next int
	if err := tx.GetContext(ctx, &next, `SELECT COALESCE(MAX(position) + 1, 0) FROM events_section_images WHERE section_id = $1`, sectionID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("next image position: %w", err)
	}

	now := time.Now().UTC()
	created := make([]models.Image, 0, len(inputs))
	const insert = `INSERT INTO events_section_images (id, section_id, url, title, description, position, created_at)
VALUES (:id, :section_id, :url, :title, :description, :position, :created_at)`
	for i, input := range inputs {
		img := models.Image{
			ID:          uuid.NewString(),
			SectionID:   sectionID,
			URL:         input.URL,
			Title:       input.Title,
			Description: input.Description,
			Position:    next + i,
			CreatedAt:   now,
		}
		if _, err := tx.NamedExecContext(ctx, insert, img); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("insert section image: %w", err)
		}
		created = append(created, img)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add images tx: %w", err)
	}
	return created, nil
}

// DeleteImage removes one image from a section. The bool result reports
// whether an image row was removed; a missing section is sql.ErrNoRows.
func (r *SectionRepository) DeleteImage(ctx context.Context, sectionID, imageID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM events_sections WHERE id = $1)`, sectionID); err != nil {
		return false, fmt.Errorf("check section exists: %w", err)
	}
	if !exists {
		return false, sql.ErrNoRows
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM events_section_images WHERE id = $1 AND section_id = $2`, imageID, sectionID)
	if err != nil {
		return false, fmt.Errorf("delete section image: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check image delete rows: %w", err)
	}
	return affected > 0, nil
}

// ReplaceAll swaps the entire section/image structure of a document in one
// transaction. Used by whole-document updates where sections arrive as a blob.
func (r *SectionRepository) ReplaceAll(ctx context.Context, documentID string, sections []models.Section) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace sections tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM events_section_images WHERE section_id IN (SELECT id FROM events_sections WHERE document_id = $1)`, documentID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear section images: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events_sections WHERE document_id = $1`, documentID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear sections: %w", err)
	}

	now := time.Now().UTC()
	const sectionInsert = `INSERT INTO events_sections (id, document_id, name, title, position, created_at, updated_at)
VALUES (:id, :document_id, :name, :title, :position, :created_at, :updated_at)`
	const imageInsert = `INSERT INTO events_section_images (id, section_id, url, title, description, position, created_at)
VALUES (:id, :section_id, :url, :title, :description, :position, :created_at)`

	for pos, section := range sections {
		if section.ID == "" {
			section.ID = uuid.NewString()
		}
		section.DocumentID = documentID
		section.Position = pos
		if section.CreatedAt.IsZero() {
			section.CreatedAt = now
		}
		section.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, sectionInsert, section); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert replacement section: %w", err)
		}
		for imgPos, img := range section.Images {
			if img.ID == "" {
				img.ID = uuid.NewString()
			}
			img.SectionID = section.ID
			img.Position = imgPos
			if img.CreatedAt.IsZero() {
				img.CreatedAt = now
			}
			if _, err := tx.NamedExecContext(ctx, imageInsert, img); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert replacement image: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace sections tx: %w", err)
	}
	return nil
}
