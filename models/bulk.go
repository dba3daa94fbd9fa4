package models

import (
	"strings"
	"time"
)

// BulkProductInfo is one row of an uploaded product file
type BulkProductInfo struct {
	ProductName string `json:"product_name" bson:"product_name"`
	Description string `json:"description" bson:"description"`
}

// GeneratedFields is the flattened success half of a bulk outcome
type GeneratedFields struct {
	GeneratedDescription1 string `json:"generated_description_1" bson:"generated_description_1"`
	GeneratedDescription2 string `json:"generated_description_2" bson:"generated_description_2"`
	GeneratedDescription3 string `json:"generated_description_3" bson:"generated_description_3"`
	MetaTitle             string `json:"meta_title" bson:"meta_title"`
	MetaDescription       string `json:"meta_description" bson:"meta_description"`
	Keywords              string `json:"keywords" bson:"keywords"`
}

// BulkResult is the outcome of one row. Exactly one of Generated and Error is set.
type BulkResult struct {
	BulkProductInfo `bson:",inline"`
	Generated       *GeneratedFields `json:"generated,omitempty" bson:"generated,omitempty"`
	Error           string           `json:"error,omitempty" bson:"error,omitempty"`
}

// Succeeded reports whether the row produced generated content
func (r BulkResult) Succeeded() bool {
	return r.Generated != nil && r.Error == ""
}

// SuccessResult builds the outcome for a row the generator answered
func SuccessResult(record BulkProductInfo, resp *GenerateResponse) BulkResult {
	texts := resp.Descriptions
	if len(texts) == 0 {
		texts = resp.SocialMediaPosts
	}
	fields := &GeneratedFields{
		GeneratedDescription1: nth(texts, 0),
		GeneratedDescription2: nth(texts, 1),
		GeneratedDescription3: nth(texts, 2),
	}
	if resp.Seo != nil {
		fields.MetaTitle = resp.Seo.MetaTitle
		fields.MetaDescription = resp.Seo.MetaDescription
		fields.Keywords = strings.Join(resp.Seo.Keywords, ", ")
	}
	return BulkResult{BulkProductInfo: record, Generated: fields}
}

// FailureResult builds the outcome for a row the generator rejected
func FailureResult(record BulkProductInfo, message string) BulkResult {
	if strings.TrimSpace(message) == "" {
		message = "Unknown API error"
	}
	return BulkResult{BulkProductInfo: record, Error: message}
}

func nth(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

// Progress tracks a running bulk pipeline
type Progress struct {
	Current      int    `json:"current"`
	Total        int    `json:"total"`
	CurrentLabel string `json:"current_label"`
}

// Bulk job statuses
const (
	BulkJobPending    = "pending"
	BulkJobProcessing = "processing"
	BulkJobCompleted  = "completed"
	BulkJobFailed     = "failed"
)

// BulkArtifacts are the object keys of a finished run's downloadable files
type BulkArtifacts struct {
	CSVKey  string `json:"csv_key,omitempty" bson:"csv_key,omitempty"`
	XLSXKey string `json:"xlsx_key,omitempty" bson:"xlsx_key,omitempty"`
}

// BulkJob is the persisted record of an asynchronous bulk run
type BulkJob struct {
	ID           string        `json:"id" bson:"_id"`
	UserID       string        `json:"user_id" bson:"user_id"`
	FileName     string        `json:"file_name" bson:"file_name"`
	Tone         string        `json:"tone" bson:"tone"`
	Language     string        `json:"language" bson:"language"`
	ContentType  ContentType   `json:"content_type" bson:"content_type"`
	Status       string        `json:"status" bson:"status"`
	Progress     Progress      `json:"progress" bson:"progress"`
	SuccessCount int           `json:"success_count" bson:"success_count"`
	FailureCount int           `json:"failure_count" bson:"failure_count"`
	Failures     []BulkResult  `json:"failures,omitempty" bson:"failures,omitempty"`
	Error        string        `json:"error,omitempty" bson:"error,omitempty"`
	Artifacts    BulkArtifacts `json:"artifacts" bson:"artifacts"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
	StartedAt    *time.Time    `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}
