// Package bulk generates content for every row of an uploaded product file.
package bulk

import (
	"context"
	"strings"

	"github.com/raushankrgupta/product-descriptions-ai/generation"
	"github.com/raushankrgupta/product-descriptions-ai/metrics"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/sirupsen/logrus"
)

// EmptyInputMessage is reported when a file has no usable rows
const EmptyInputMessage = `File is empty or invalid. Make sure it contains "product_name" and "description" columns.`

var ErrEmptyInput = models.ValidationError{Message: EmptyInputMessage}

// Settings apply to every row of a run
type Settings struct {
	Tone        string             `json:"tone"`
	Language    string             `json:"language,omitempty"`
	ContentType models.ContentType `json:"content_type,omitempty"`
}

// withDefaults fills the language and content type a bulk run falls back to
func (s Settings) withDefaults() Settings {
	if strings.TrimSpace(s.Language) == "" {
		s.Language = models.DefaultLanguage
	}
	if s.ContentType == "" {
		s.ContentType = models.ContentTypeProductDescription
	}
	return s
}

// ProgressFunc receives a snapshot before each row is generated
type ProgressFunc func(models.Progress)

// Meter charges rows against a quota. Allow is asked before each row and
// Record is called after each successful one.
type Meter interface {
	Allow() error
	Record(ctx context.Context) error
}

// Report is the frozen result of a run
type Report struct {
	Outcomes     []models.BulkResult `json:"outcomes"`
	SuccessCount int                 `json:"success_count"`
	FailureCount int                 `json:"failure_count"`
}

// Failures returns the outcomes that carry an error, in input order
func (r *Report) Failures() []models.BulkResult {
	var failed []models.BulkResult
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Pipeline runs rows through a Generator one at a time
type Pipeline struct {
	generator generation.Generator
	meter     Meter
	logger    logrus.FieldLogger
}

func NewPipeline(generator generation.Generator, logger logrus.FieldLogger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{generator: generator, logger: logger}
}

// WithMeter returns a copy of the pipeline that charges every row to m
func (p *Pipeline) WithMeter(m Meter) *Pipeline {
	cp := *p
	cp.meter = m
	return &cp
}

// Run generates content for each record in order and returns one outcome per record.
// A failed row becomes an error outcome and the run moves on. Run does not stop
// early when ctx is canceled; ctx is handed to each generator call.
func (p *Pipeline) Run(ctx context.Context, records []models.BulkProductInfo, settings Settings, onProgress ProgressFunc) (*Report, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}
	if onProgress == nil {
		onProgress = func(models.Progress) {}
	}
	settings = settings.withDefaults()

	total := len(records)
	report := &Report{Outcomes: make([]models.BulkResult, 0, total)}
	onProgress(models.Progress{Current: 0, Total: total})

	for i, record := range records {
		onProgress(models.Progress{Current: i + 1, Total: total, CurrentLabel: record.ProductName})

		log := p.logger.WithFields(logrus.Fields{"row": i + 1, "total": total, "product": record.ProductName})

		if p.meter != nil {
			if err := p.meter.Allow(); err != nil {
				report.add(models.FailureResult(record, err.Error()))
				log.WithError(err).Info("Row skipped by usage limit")
				continue
			}
		}

		info := models.ProductInfo{
			ProductName: record.ProductName,
			Description: record.Description,
			Tone:        settings.Tone,
			Language:    settings.Language,
			ContentType: settings.ContentType,
		}

		resp, err := p.generator.Generate(ctx, info)
		if err != nil {
			metrics.GenerationRequests.WithLabelValues("bulk", metrics.OutcomeFailure).Inc()
			report.add(models.FailureResult(record, err.Error()))
			log.WithError(err).Warn("Row generation failed")
			continue
		}
		metrics.GenerationRequests.WithLabelValues("bulk", metrics.OutcomeSuccess).Inc()
		report.add(models.SuccessResult(record, resp))

		if p.meter != nil {
			if err := p.meter.Record(ctx); err != nil {
				log.WithError(err).Warn("Failed to record row usage")
			}
		}
	}

	p.logger.WithFields(logrus.Fields{
		"total":    total,
		"success":  report.SuccessCount,
		"failures": report.FailureCount,
	}).Info("Bulk run finished")
	return report, nil
}

func (r *Report) add(outcome models.BulkResult) {
	r.Outcomes = append(r.Outcomes, outcome)
	if outcome.Succeeded() {
		r.SuccessCount++
		metrics.BulkRows.WithLabelValues(metrics.OutcomeSuccess).Inc()
	} else {
		r.FailureCount++
		metrics.BulkRows.WithLabelValues(metrics.OutcomeFailure).Inc()
	}
}
