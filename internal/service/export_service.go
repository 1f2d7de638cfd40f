package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/pkg/export"
	"github.com/svnapro/campuscore-api/pkg/storage"
)

// exportAttendanceStore is the slice of attendance storage exports read from.
type exportAttendanceStore interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

// exportPlacementStore is the slice of placement storage exports read from.
type exportPlacementStore interface {
	ListRounds(ctx context.Context, jobID string) ([]models.JobRound, error)
	CurrentMembers(ctx context.Context, roundID string) ([]models.RoundMemberRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	attendance exportAttendanceStore
	placements exportPlacementStore
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(attendance exportAttendanceStore, placements exportPlacementStore, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		attendance: attendance,
		placements: placements,
		storage:    storage,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scopePart := "na"
	if job.Params.SectionID != nil {
		scopePart = sanitizeFilename(*job.Params.SectionID)
	} else if job.Params.JobID != nil {
		scopePart = sanitizeFilename(*job.Params.JobID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scopePart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeAttendanceRegister:
		return s.buildAttendanceRegister(ctx, job.Params)
	case models.ReportTypePlacementRounds:
		return s.buildPlacementRounds(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildAttendanceRegister(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.AttendanceFilter{
		SectionID: deref(params.SectionID),
		StudentID: deref(params.StudentID),
		SortBy:    "date",
		SortOrder: "ASC",
		// The register is a full dump, not a page.
		PageSize: 200,
	}
	if params.DateFrom != nil {
		if from, err := time.Parse("2006-01-02", *params.DateFrom); err == nil {
			filter.DateFrom = &from
		}
	}
	if params.DateTo != nil {
		if to, err := time.Parse("2006-01-02", *params.DateTo); err == nil {
			filter.DateTo = &to
		}
	}

	headers := []string{"Student ID", "Date", "Subject", "Period", "Status", "Marked By", "Approval"}
	var dataRows []map[string]string
	for page := 1; ; page++ {
		filter.Page = page
		records, total, err := s.attendance.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, rec := range records {
			subject := deref(rec.SubjectID)
			if subject == "" {
				subject = deref(rec.SubjectName)
			}
			period := "day"
			if rec.Period != nil {
				period = fmt.Sprintf("%d", *rec.Period)
			}
			dataRows = append(dataRows, map[string]string{
				"Student ID": rec.StudentID,
				"Date":       rec.Date.Format("2006-01-02"),
				"Subject":    subject,
				"Period":     period,
				"Status":     string(rec.Status),
				"Marked By":  rec.MarkedBy,
				"Approval":   string(rec.ApprovalStatus),
			})
		}
		if page*filter.PageSize >= total || len(records) == 0 {
			break
		}
	}

	title := "Attendance Register"
	if params.SectionID != nil {
		title = fmt.Sprintf("Attendance Register %s", *params.SectionID)
	}
	return export.Dataset{Headers: headers, Rows: dataRows}, title, nil
}

func (s *ExportService) buildPlacementRounds(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.JobID == nil {
		return export.Dataset{}, "", fmt.Errorf("placement report requires a job id")
	}
	rounds, err := s.placements.ListRounds(ctx, *params.JobID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Round", "Order", "Student", "Student ID", "Status", "Reached At"}
	var dataRows []map[string]string
	for _, round := range rounds {
		members, err := s.placements.CurrentMembers(ctx, round.ID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, member := range members {
			dataRows = append(dataRows, map[string]string{
				"Round":      round.Name,
				"Order":      fmt.Sprintf("%d", round.RoundOrder),
				"Student":    member.StudentName,
				"Student ID": member.StudentID,
				"Status":     string(member.Status),
				"Reached At": member.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
	}

	title := fmt.Sprintf("Placement Pipeline %s", *params.JobID)
	return export.Dataset{Headers: headers, Rows: dataRows}, title, nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
