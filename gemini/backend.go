// Package gemini generates marketing copy with the Gemini API. It is the server side
// of POST /api/generate and can also be used directly as a generation.Generator.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/raushankrgupta/product-descriptions-ai/metrics"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured
const DefaultModel = "gemini-2.5-flash"

// contentModel is the part of *genai.GenerativeModel the backend calls
type contentModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// modelFactory returns a model configured to answer with JSON of the given schema
type modelFactory func(schema *genai.Schema) contentModel

// Backend turns a ProductInfo into a GenerateResponse through Gemini
type Backend struct {
	client    *genai.Client
	newModel  modelFactory
	validator *OutputValidator
	logger    logrus.FieldLogger
}

// NewBackend creates the Gemini client
func NewBackend(ctx context.Context, apiKey, modelName string, logger logrus.FieldLogger) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	factory := func(schema *genai.Schema) contentModel {
		model := client.GenerativeModel(modelName)
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = schema
		return model
	}

	b, err := newBackend(factory, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	b.client = client
	return b, nil
}

func newBackend(factory modelFactory, logger logrus.FieldLogger) (*Backend, error) {
	validator, err := NewOutputValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Backend{newModel: factory, validator: validator, logger: logger}, nil
}

func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// Generate builds the prompt for info's content type, calls the model and
// checks its JSON answer against the response schema.
func (b *Backend) Generate(ctx context.Context, info models.ProductInfo) (*models.GenerateResponse, error) {
	start := time.Now()
	defer func() {
		metrics.GenerationDuration.WithLabelValues("gemini").Observe(time.Since(start).Seconds())
	}()

	ct := info.ContentType
	if ct != models.ContentTypeSocialMediaPost {
		ct = models.ContentTypeProductDescription
	}
	info.ContentType = ct

	schema, _ := schemasFor(ct)
	log := b.logger.WithFields(logrus.Fields{"content_type": ct, "product": info.ProductName})

	var parts []genai.Part
	withImage := ct == models.ContentTypeProductDescription && info.HasImage()
	if withImage {
		img, err := prepareImage(info.ImageData, info.ImageMimeType)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.Text(buildPrompt(info, true)), genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
		log.WithField("image_bytes", len(img.Data)).Debug("Attached product image")
	} else {
		parts = append(parts, genai.Text(buildPrompt(info, false)))
	}

	resp, err := b.newModel(schema).GenerateContent(ctx, parts...)
	if err != nil {
		log.WithError(err).Error("Gemini request failed")
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("no content generated")
	}

	if err := b.validator.Validate(ct, []byte(text)); err != nil {
		log.WithError(err).Warn("Model output rejected")
		return nil, err
	}

	var out models.GenerateResponse
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	log.WithField("elapsed", time.Since(start)).Info("Content generated")
	return &out, nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}
