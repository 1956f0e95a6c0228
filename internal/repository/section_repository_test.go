package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/institute-cms-api/internal/models"
)

func newSectionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestSectionRepositoryListByDocument(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	now := time.Now().UTC()

	sectionRows := sqlmock.NewRows([]string{"id", "document_id", "name", "title", "position", "created_at", "updated_at"}).
		AddRow("sec-1", models.EventsDocumentID, "Gallery", "Event Gallery", 0, now, now).
		AddRow("sec-2", models.EventsDocumentID, "Sports Day", nil, 1, now, now)
	mock.ExpectQuery("SELECT id, document_id, name").
		WithArgs(models.EventsDocumentID).
		WillReturnRows(sectionRows)

	imageRows := sqlmock.NewRows([]string{"id", "section_id", "url", "title", "description", "position", "created_at"}).
		AddRow("img-1", "sec-1", "/uploads/a.jpg", "Image 1", "", 0, now).
		AddRow("img-2", "sec-1", "/uploads/b.jpg", "Image 2", "", 1, now)
	mock.ExpectQuery("SELECT i.id, i.section_id").
		WithArgs(models.EventsDocumentID).
		WillReturnRows(imageRows)

	sections, err := repo.ListByDocument(context.Background(), models.EventsDocumentID)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Len(t, sections[0].Images, 2)
	assert.Equal(t, "/uploads/a.jpg", sections[0].Images[0].URL)
	assert.NotNil(t, sections[1].Images)
	assert.Empty(t, sections[1].Images)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryCreateAppendsAtEnd(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectQuery("INSERT INTO events_sections").
		WithArgs(sqlmock.AnyArg(), models.EventsDocumentID, "Gallery", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(2))

	section, err := repo.Create(context.Background(), models.EventsDocumentID, "Gallery", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, section.ID)
	assert.Equal(t, 2, section.Position)
	assert.NotNil(t, section.Images)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryRenameMissing(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectExec("UPDATE events_sections").
		WithArgs("missing", "Renamed", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Rename(context.Background(), "missing", "Renamed", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryDeleteCascades(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM events_section_images").
		WithArgs("sec-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM events_sections").
		WithArgs("sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.Delete(context.Background(), "sec-1")
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryDeleteMissingIsNoop(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM events_section_images").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM events_sections").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	removed, err := repo.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryAddImagesMissingSection(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := repo.AddImages(context.Background(), "missing", []models.NewImage{{URL: "/uploads/a.jpg"}})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryAddImagesAssignsPositions(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(5))
	mock.ExpectExec("INSERT INTO events_section_images").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events_section_images").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := repo.AddImages(context.Background(), "sec-1", []models.NewImage{
		{URL: "/uploads/a.jpg"},
		{URL: "/uploads/b.jpg"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, 5, created[0].Position)
	assert.Equal(t, 6, created[1].Position)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryDeleteImage(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("DELETE FROM events_section_images").
		WithArgs("img-1", "sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := repo.DeleteImage(context.Background(), "sec-1", "img-1")
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryDeleteImageMissingSection(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.DeleteImage(context.Background(), "missing", "img-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
