package bulk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raushankrgupta/product-descriptions-ai/config"
	"github.com/raushankrgupta/product-descriptions-ai/generation"
	"github.com/raushankrgupta/product-descriptions-ai/metrics"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/raushankrgupta/product-descriptions-ai/sheets"
	"github.com/raushankrgupta/product-descriptions-ai/usage"
	"github.com/sirupsen/logrus"
)

// CompletedSubject is the NATS subject finished jobs are announced on
const CompletedSubject = "bulk.completed"

// DefaultTone is used when an upload does not pick one
const DefaultTone = "professional"

// Download formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	csvContentType  = "text/csv"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	downloadURLTTL  = time.Hour
)

// CompletedEvent is published when a job reaches a final status
type CompletedEvent struct {
	JobID        string    `json:"job_id"`
	UserID       string    `json:"user_id"`
	Status       string    `json:"status"`
	Total        int       `json:"total"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Artifact is a downloadable result file: either a direct URL or the file itself
type Artifact struct {
	URL         string
	FileName    string
	ContentType string
	Data        []byte
}

// Deps are the collaborators of a Service. Events may be nil.
type Deps struct {
	Gate      *usage.Gate
	Generator generation.Generator
	Jobs      JobStore
	Progress  ProgressStore
	Artifacts ArtifactStore
	Events    EventPublisher
	Policy    config.BulkUsagePolicy
	Logger    logrus.FieldLogger
}

// Service runs bulk jobs in the background and tracks them
type Service struct {
	Deps
	pipeline *Pipeline
	wg       sync.WaitGroup
	now      func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Policy == "" {
		deps.Policy = config.BulkUsageFlat
	}
	return &Service{
		Deps:     deps,
		pipeline: NewPipeline(deps.Generator, deps.Logger),
		now:      time.Now,
	}
}

// NormalizeSettings applies defaults and rejects unknown tones and content types
func NormalizeSettings(s Settings) (Settings, error) {
	s.Tone = strings.TrimSpace(s.Tone)
	if s.Tone == "" {
		s.Tone = DefaultTone
	}
	if !models.IsKnownTone(s.Tone) {
		return s, models.ValidationError{Message: fmt.Sprintf("Unsupported tone %q.", s.Tone)}
	}
	s = s.withDefaults()
	if !models.IsKnownContentType(s.ContentType) {
		return s, models.ValidationError{Message: fmt.Sprintf("Unsupported content type %q.", s.ContentType)}
	}
	return s, nil
}

// Start checks the quota, parses the file and launches the run. The returned job
// is pending; the run continues after ctx is done.
func (s *Service) Start(ctx context.Context, userID, fileName string, data []byte, settings Settings) (*models.BulkJob, error) {
	session, err := s.Gate.Begin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := session.CheckBulk(); err != nil {
		return nil, err
	}

	if !sheets.IsSupported(fileName) {
		return nil, sheets.ErrInvalidFileType
	}
	settings, err = NormalizeSettings(settings)
	if err != nil {
		return nil, err
	}
	records, err := sheets.ParseFile(fileName, data)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	job := &models.BulkJob{
		ID:          uuid.NewString(),
		UserID:      userID,
		FileName:    fileName,
		Tone:        settings.Tone,
		Language:    settings.Language,
		ContentType: settings.ContentType,
		Status:      models.BulkJobPending,
		Progress:    models.Progress{Current: 0, Total: len(records)},
		CreatedAt:   s.now().UTC(),
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.Progress.Set(ctx, job.ID, job.Progress); err != nil {
		s.Logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to store initial progress")
	}

	snapshot := *job
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(runCtx, job, session, records, settings)
	}()

	return &snapshot, nil
}

// Wait blocks until every started job has finished
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context, job *models.BulkJob, session *usage.Session, records []models.BulkProductInfo, settings Settings) {
	log := s.Logger.WithFields(logrus.Fields{"job_id": job.ID, "user_id": job.UserID})

	started := s.now().UTC()
	job.Status = models.BulkJobProcessing
	job.StartedAt = &started
	if err := s.Jobs.Update(ctx, job); err != nil {
		log.WithError(err).Warn("Failed to mark job as processing")
	}

	pipeline := s.pipeline
	if s.Policy == config.BulkUsagePerItem {
		pipeline = pipeline.WithMeter(session)
	}

	var last models.Progress
	report, err := pipeline.Run(ctx, records, settings, func(p models.Progress) {
		last = p
		if err := s.Progress.Set(ctx, job.ID, p); err != nil {
			log.WithError(err).Warn("Failed to store progress")
		}
	})
	job.Progress = last

	if err != nil {
		s.finish(ctx, job, models.BulkJobFailed, err.Error(), log)
		return
	}

	job.SuccessCount = report.SuccessCount
	job.FailureCount = report.FailureCount
	job.Failures = report.Failures()

	if err := s.storeArtifacts(ctx, job, report.Outcomes); err != nil {
		log.WithError(err).Error("Failed to store bulk results")
		s.finish(ctx, job, models.BulkJobFailed, "Failed to store results: "+err.Error(), log)
		return
	}
	s.finish(ctx, job, models.BulkJobCompleted, "", log)
}

func (s *Service) storeArtifacts(ctx context.Context, job *models.BulkJob, outcomes []models.BulkResult) error {
	csvData, err := sheets.WriteCSV(outcomes)
	if err != nil {
		return err
	}
	xlsxData, err := sheets.WriteExcel(outcomes)
	if err != nil {
		return err
	}

	base := fmt.Sprintf("bulk/%s/%s", job.UserID, job.ID)
	csvKey, xlsxKey := base+".csv", base+".xlsx"
	if err := s.Artifacts.Put(ctx, csvKey, csvContentType, csvData); err != nil {
		return err
	}
	if err := s.Artifacts.Put(ctx, xlsxKey, xlsxContentType, xlsxData); err != nil {
		return err
	}
	job.Artifacts = models.BulkArtifacts{CSVKey: csvKey, XLSXKey: xlsxKey}
	return nil
}

func (s *Service) finish(ctx context.Context, job *models.BulkJob, status, message string, log logrus.FieldLogger) {
	completed := s.now().UTC()
	job.Status = status
	job.Error = message
	job.CompletedAt = &completed

	if err := s.Jobs.Update(ctx, job); err != nil {
		log.WithError(err).Error("Failed to save finished job")
	}
	metrics.BulkJobs.WithLabelValues(status).Inc()

	if s.Events != nil {
		event := CompletedEvent{
			JobID:        job.ID,
			UserID:       job.UserID,
			Status:       status,
			Total:        job.Progress.Total,
			SuccessCount: job.SuccessCount,
			FailureCount: job.FailureCount,
			CompletedAt:  completed,
		}
		if err := s.Events.PublishJSON(CompletedSubject, event); err != nil {
			log.WithError(err).Warn("Failed to publish completion event")
		}
	}

	log.WithFields(logrus.Fields{
		"status":   status,
		"success":  job.SuccessCount,
		"failures": job.FailureCount,
	}).Info("Bulk job finished")
}

// Get returns the job owned by userID with its latest progress
func (s *Service) Get(ctx context.Context, userID, jobID string) (*models.BulkJob, error) {
	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}

	if job.Status == models.BulkJobPending || job.Status == models.BulkJobProcessing {
		p, err := s.Progress.Get(ctx, jobID)
		if err != nil {
			s.Logger.WithError(err).WithField("job_id", jobID).Warn("Failed to read live progress")
		} else if p != nil {
			job.Progress = *p
		}
	}
	return job, nil
}

// Download returns the requested export of a completed job
func (s *Service) Download(ctx context.Context, userID, jobID, format string) (*Artifact, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.BulkJobCompleted {
		return nil, models.ValidationError{Message: "Results are not ready yet."}
	}

	var key, contentType, fileName string
	switch strings.ToLower(format) {
	case "", FormatCSV:
		key, contentType, fileName = job.Artifacts.CSVKey, csvContentType, "generated_products.csv"
	case FormatXLSX:
		key, contentType, fileName = job.Artifacts.XLSXKey, xlsxContentType, "generated_products.xlsx"
	default:
		return nil, models.ValidationError{Message: "Unsupported format. Use csv or xlsx."}
	}

	url, err := s.Artifacts.PresignGet(ctx, key, downloadURLTTL)
	if err != nil {
		return nil, err
	}
	if url != "" {
		return &Artifact{URL: url, FileName: fileName, ContentType: contentType}, nil
	}

	data, err := s.Artifacts.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Artifact{FileName: fileName, ContentType: contentType, Data: data}, nil
}
