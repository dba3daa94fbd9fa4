package models

import "strings"

// ContentType selects which marketing kit the generator produces
type ContentType string

const (
	ContentTypeProductDescription ContentType = "product_description"
	ContentTypeSocialMediaPost    ContentType = "social_media_post"
)

// DefaultLanguage is used whenever a request leaves the language empty (bulk runs always do)
const DefaultLanguage = "en"

// Option is a selectable value with its display label
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var Tones = []Option{
	{Value: "professional", Label: "Professional"},
	{Value: "friendly", Label: "Friendly"},
	{Value: "creative", Label: "Creative"},
	{Value: "premium", Label: "Premium / Luxury"},
	{Value: "witty", Label: "Witty / Humorous"},
	{Value: "persuasive", Label: "Persuasive"},
	{Value: "technical", Label: "Technical / Informative"},
	{Value: "playful", Label: "Playful"},
	{Value: "formal", Label: "Formal"},
	{Value: "empathetic", Label: "Empathetic"},
}

var Languages = []Option{
	{Value: "en", Label: "English (EN)"},
	{Value: "vi", Label: "Vietnamese (VI)"},
	{Value: "es", Label: "Spanish (ES)"},
	{Value: "jp", Label: "Japanese (JP)"},
	{Value: "de", Label: "German (DE)"},
}

var ContentTypes = []Option{
	{Value: string(ContentTypeProductDescription), Label: "Product Description"},
	{Value: string(ContentTypeSocialMediaPost), Label: "Social Media Post"},
}

// IsKnownTone reports whether tone is one of Tones
func IsKnownTone(tone string) bool {
	return hasOption(Tones, tone)
}

// IsKnownContentType reports whether ct is one of ContentTypes
func IsKnownContentType(ct ContentType) bool {
	return hasOption(ContentTypes, string(ct))
}

func hasOption(options []Option, value string) bool {
	for _, o := range options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// ProductInfo is the generation request for a single product
type ProductInfo struct {
	ProductName   string      `json:"productName" validate:"required"`
	Description   string      `json:"description" validate:"required"`
	Tone          string      `json:"tone" validate:"required"`
	Language      string      `json:"language" validate:"required"`
	ContentType   ContentType `json:"contentType" validate:"required,oneof=product_description social_media_post"`
	ImageData     string      `json:"imageData,omitempty"` // base64 encoded image
	ImageMimeType string      `json:"imageMimeType,omitempty"`
}

// HasImage reports whether both halves of the inline image are present
func (p ProductInfo) HasImage() bool {
	return p.ImageData != "" && p.ImageMimeType != ""
}

// Trimmed returns a copy with name and description stripped of surrounding whitespace
func (p ProductInfo) Trimmed() ProductInfo {
	p.ProductName = strings.TrimSpace(p.ProductName)
	p.Description = strings.TrimSpace(p.Description)
	return p
}

// SeoData holds the generated search metadata
type SeoData struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
}

// GenerateResponse is the generated marketing kit. Product description runs fill
// everything except SocialMediaPosts; social media runs fill only SocialMediaPosts.
type GenerateResponse struct {
	Descriptions     []string `json:"descriptions,omitempty"`
	Seo              *SeoData `json:"seo,omitempty"`
	FeatureBullets   []string `json:"featureBullets,omitempty"`
	TargetAudience   string   `json:"targetAudience,omitempty"`
	CallToActions    []string `json:"callToActions,omitempty"`
	Hashtags         []string `json:"hashtags,omitempty"`
	SocialMediaPosts []string `json:"socialMediaPosts,omitempty"`
}
