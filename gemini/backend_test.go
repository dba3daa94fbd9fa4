package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	schema *genai.Schema
	parts  []genai.Part
	answer string
	err    error
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(f.answer)}},
		}},
	}, nil
}

func newTestBackend(t *testing.T, fake *fakeModel) *Backend {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	b, err := newBackend(func(schema *genai.Schema) contentModel {
		fake.schema = schema
		return fake
	}, logger)
	require.NoError(t, err)
	return b
}

const kitAnswer = `{
  "descriptions": ["One", "Two", "Three"],
  "seo": {"metaTitle": "Title", "metaDescription": "Meta", "keywords": ["mug", "ceramic"]},
  "featureBullets": ["Holds 350ml"],
  "targetAudience": "Coffee lovers",
  "callToActions": ["Buy now"],
  "hashtags": ["mug"]
}`

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestBackend_Generate_ProductDescription(t *testing.T) {
	fake := &fakeModel{answer: kitAnswer}
	b := newTestBackend(t, fake)

	resp, err := b.Generate(context.Background(), models.ProductInfo{
		ProductName: "Mug",
		Description: "<p>Ceramic <b>mug</b></p>",
		Tone:        "friendly",
		Language:    "vi",
		ContentType: models.ContentTypeProductDescription,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two", "Three"}, resp.Descriptions)
	assert.Equal(t, "Coffee lovers", resp.TargetAudience)
	assert.Same(t, productDescriptionSchema, fake.schema)

	require.Len(t, fake.parts, 1)
	prompt := string(fake.parts[0].(genai.Text))
	assert.Contains(t, prompt, "- Product Name: Mug")
	assert.Contains(t, prompt, "Ceramic mug")
	assert.NotContains(t, prompt, "<b>")
	assert.Contains(t, prompt, "Adopt a 'friendly' tone")
	assert.Contains(t, prompt, "Vietnamese (vi)")
	assert.NotContains(t, prompt, "An image of the product")
}

func TestBackend_Generate_SocialMediaPost(t *testing.T) {
	fake := &fakeModel{answer: `{"socialMediaPosts": ["Post A", "Post B"]}`}
	b := newTestBackend(t, fake)

	resp, err := b.Generate(context.Background(), models.ProductInfo{
		ProductName:   "Mug",
		Description:   "Ceramic",
		Tone:          "witty",
		Language:      "jp",
		ContentType:   models.ContentTypeSocialMediaPost,
		ImageData:     pngBase64(t, 10, 10),
		ImageMimeType: "image/png",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Post A", "Post B"}, resp.SocialMediaPosts)
	assert.Same(t, socialMediaPostSchema, fake.schema)
	// images only accompany product description requests
	require.Len(t, fake.parts, 1)
	prompt := string(fake.parts[0].(genai.Text))
	assert.Contains(t, prompt, "social media manager")
	assert.Contains(t, prompt, "Japanese (jp)")
}

func TestBackend_Generate_WithImage(t *testing.T) {
	fake := &fakeModel{answer: kitAnswer}
	b := newTestBackend(t, fake)

	_, err := b.Generate(context.Background(), models.ProductInfo{
		ProductName:   "Mug",
		Description:   "Ceramic",
		Tone:          "friendly",
		Language:      "en",
		ContentType:   models.ContentTypeProductDescription,
		ImageData:     pngBase64(t, 2048, 1024),
		ImageMimeType: "image/png",
	})

	require.NoError(t, err)
	require.Len(t, fake.parts, 2)
	assert.Contains(t, string(fake.parts[0].(genai.Text)), "An image of the product is also provided")

	blob, ok := fake.parts[1].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/png", blob.MIMEType)
	cfg, err := png.DecodeConfig(bytes.NewReader(blob.Data))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 512, cfg.Height)
}

func TestBackend_Generate_Failures(t *testing.T) {
	base := models.ProductInfo{
		ProductName: "Mug",
		Description: "Ceramic",
		Tone:        "friendly",
		Language:    "en",
		ContentType: models.ContentTypeProductDescription,
	}

	t.Run("model error", func(t *testing.T) {
		modelErr := errors.New("quota exhausted")
		b := newTestBackend(t, &fakeModel{err: modelErr})
		_, err := b.Generate(context.Background(), base)
		require.Error(t, err)
		assert.ErrorIs(t, err, modelErr)
	})

	t.Run("empty answer", func(t *testing.T) {
		b := newTestBackend(t, &fakeModel{answer: "  "})
		_, err := b.Generate(context.Background(), base)
		require.EqualError(t, err, "no content generated")
	})

	t.Run("answer missing required fields", func(t *testing.T) {
		b := newTestBackend(t, &fakeModel{answer: `{"descriptions": ["only"]}`})
		_, err := b.Generate(context.Background(), base)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Model response did not match the expected schema")
		assert.Contains(t, err.Error(), "seo")
	})

	t.Run("invalid base64 image", func(t *testing.T) {
		b := newTestBackend(t, &fakeModel{answer: kitAnswer})
		info := base
		info.ImageData = "!!not base64!!"
		info.ImageMimeType = "image/png"
		_, err := b.Generate(context.Background(), info)
		var ve models.ValidationError
		require.True(t, errors.As(err, &ve))
	})
}

func TestLanguageName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"en", "English (en)"},
		{"de", "German (de)"},
		{"es", "Spanish (es)"},
		{"jp", "Japanese (jp)"},
		{"", "English (en)"},
		{"??", "??"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, languageName(tt.code))
		})
	}
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "plain words", plainText("  plain words "))
	assert.Equal(t, "Soft cotton Machine washable", plainText("<ul><li>Soft cotton</li><li>Machine washable</li></ul>"))
	assert.Equal(t, "Visible", plainText("<div>Visible<script>alert(1)</script></div>"))
}

func TestPrepareImage_SmallImagePassesThrough(t *testing.T) {
	data := pngBase64(t, 100, 50)
	img, err := prepareImage("data:image/png;base64,"+data, "image/png")
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(data)
	assert.Equal(t, raw, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
}
