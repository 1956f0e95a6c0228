package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/institute-cms-api/internal/models"
	appErrors "github.com/campuskit/institute-cms-api/pkg/errors"
	"github.com/campuskit/institute-cms-api/pkg/export"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportDocumentSource interface {
	GetDocument(ctx context.Context) (*models.EventsDocument, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult captures a rendered gallery inventory export.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders the events gallery inventory as CSV or PDF. The
// inventory lists every image with its section, ordering and metadata, plus
// unmigrated legacy URLs so nothing is invisible to an audit.
type ExportService struct {
	events exportDocumentSource
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(events exportDocumentSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{events: events, csv: csv, pdf: pdf, logger: logger}
}

// Generate renders the current gallery inventory in the requested format.
func (s *ExportService) Generate(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	doc, err := s.events.GetDocument(ctx)
	if err != nil {
		return nil, err
	}

	dataset := s.buildDataset(doc)
	title := "Events Gallery Inventory"

	var payload []byte
	var contentType string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportResult{
		Filename:    s.buildFilename(format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func (s *ExportService) buildDataset(doc *models.EventsDocument) export.Dataset {
	rows := make([]map[string]string, 0)
	for _, section := range doc.Sections {
		for _, img := range section.Images {
			rows = append(rows, map[string]string{
				"Section":     section.Name,
				"Position":    fmt.Sprintf("%d", img.Position),
				"URL":         img.URL,
				"Title":       derefString(img.Title),
				"Description": derefString(img.Description),
				"Source":      "section",
				"Created At":  img.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
	}
	if !doc.Migrated() {
		for i, url := range doc.LegacyGalleryURLs {
			rows = append(rows, map[string]string{
				"Section":     "",
				"Position":    fmt.Sprintf("%d", i),
				"URL":         url,
				"Title":       "",
				"Description": "",
				"Source":      "legacy",
				"Created At":  "",
			})
		}
	}
	return export.Dataset{
		Headers: []string{"Section", "Position", "URL", "Title", "Description", "Source", "Created At"},
		Rows:    rows,
	}
}

func (s *ExportService) buildFilename(format ExportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("events_gallery_%s.%s", timestamp, strings.ToLower(string(format)))
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
