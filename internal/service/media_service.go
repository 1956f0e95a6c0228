package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/institute-cms-api/internal/models"
	appErrors "github.com/campuskit/institute-cms-api/pkg/errors"
	"github.com/campuskit/institute-cms-api/pkg/storage"
)

type mediaFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
	ListFiles() ([]storage.FileInfo, error)
}

type mediaDocumentSource interface {
	GetOrCreate(ctx context.Context) (*models.EventsDocument, error)
}

type mediaSectionSource interface {
	ListByDocument(ctx context.Context, documentID string) ([]models.Section, error)
}

type uploadMetricsRecorder interface {
	RecordUpload(outcome string)
	ObserveDBQuery(label string, duration time.Duration)
}

// MediaUpload carries upload metadata and a seekable content reader.
type MediaUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// MediaServiceConfig holds upload validation parameters.
type MediaServiceConfig struct {
	MaxFileSize   int64
	AllowedMIMEs  []string
	PublicBaseURL string
	SweepGrace    time.Duration
}

// SweepResult summarises one orphan sweep pass.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
}

// MediaService is the image store: it validates uploads, writes them to the
// uploads directory and hands back a dereferenceable URL. It also owns the
// orphaned-file sweep that reclaims uploads no longer referenced by the
// document.
type MediaService struct {
	storage  mediaFileStorage
	docs     mediaDocumentSource
	sections mediaSectionSource
	metrics  uploadMetricsRecorder
	logger   *zap.Logger
	cfg      MediaServiceConfig
	mimeSet  map[string]struct{}
}

// NewMediaService constructs the service with defaults. metrics may be nil.
func NewMediaService(store mediaFileStorage, docs mediaDocumentSource, sections mediaSectionSource, metrics uploadMetricsRecorder, logger *zap.Logger, cfg MediaServiceConfig) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "/uploads"
	}
	if cfg.SweepGrace <= 0 {
		cfg.SweepGrace = 24 * time.Hour
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &MediaService{
		storage:  store,
		docs:     docs,
		sections: sections,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		mimeSet:  mimeSet,
	}
}

// Store validates and persists one uploaded image, returning its public URL.
// The content type is sniffed from the bytes, never trusted from headers.
// Identical content is never deduplicated; every upload is its own blob.
func (s *MediaService) Store(ctx context.Context, upload MediaUpload) (string, error) {
	if upload.Content == nil || upload.Size <= 0 {
		s.recordUpload("rejected")
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		s.recordUpload("rejected")
		return "", appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}

	mimeType, err := s.detectMime(upload)
	if err != nil {
		s.recordUpload("rejected")
		return "", err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		s.recordUpload("rejected")
		return "", appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("content type %s is not an accepted image type", mimeType))
	}

	filename := s.generateFilename(upload.Filename, mimeType)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	stored, err := s.storage.SaveStream(filename, upload.Content)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist upload")
	}
	s.recordUpload("accepted")
	return s.publicURL(stored), nil
}

func (s *MediaService) recordUpload(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordUpload(outcome)
	}
}

// Sweep deletes upload files that no record references and that are older
// than the configured grace period. It is idempotent: running it twice
// deletes nothing on the second pass.
func (s *MediaService) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	referenced, err := s.referencedFiles(ctx)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("sweep_references", time.Since(start))
	}

	files, err := s.storage.ListFiles()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list uploads")
	}

	cutoff := time.Now().Add(-s.cfg.SweepGrace)
	result := &SweepResult{Scanned: len(files)}
	for _, file := range files {
		if _, ok := referenced[filepath.ToSlash(file.RelPath)]; ok {
			result.Skipped++
			continue
		}
		if file.ModTime.After(cutoff) {
			result.Skipped++
			continue
		}
		if err := s.storage.Delete(file.RelPath); err != nil {
			s.logger.Warn("failed to delete orphaned upload", zap.String("file", file.RelPath), zap.Error(err))
			continue
		}
		result.Deleted++
	}

	s.logger.Info("upload sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("deleted", result.Deleted),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *MediaService) referencedFiles(ctx context.Context) (map[string]struct{}, error) {
	doc, err := s.docs.GetOrCreate(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events document")
	}
	sections, err := s.sections.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}

	referenced := make(map[string]struct{})
	add := func(url string) {
		if rel, ok := s.relativePath(url); ok {
			referenced[rel] = struct{}{}
		}
	}
	add(doc.BannerImageURL)
	for _, url := range doc.LegacyGalleryURLs {
		add(url)
	}
	for _, section := range sections {
		for _, img := range section.Images {
			add(img.URL)
		}
	}
	return referenced, nil
}

// relativePath converts a stored URL back into an uploads-relative path.
// External URLs fall outside the base prefix and are never sweep candidates.
func (s *MediaService) relativePath(url string) (string, bool) {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	if base == "" || !strings.HasPrefix(url, base+"/") {
		return "", false
	}
	rel := strings.TrimPrefix(url, base+"/")
	if rel == "" {
		return "", false
	}
	return rel, true
}

func (s *MediaService) publicURL(filename string) string {
	return path.Join(s.cfg.PublicBaseURL, filepath.ToSlash(filename))
}

func (s *MediaService) detectMime(upload MediaUpload) (string, error) {
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

func (s *MediaService) generateFilename(original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = mimeExtension(mimeType)
	}
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("event_%d_%s%s", time.Now().Unix(), randomSuffix(), ext)
}

func mimeExtension(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
