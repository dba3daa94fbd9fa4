package gemini

import (
	"github.com/google/generative-ai-go/genai"
	"github.com/raushankrgupta/product-descriptions-ai/models"
)

func stringArray(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Items:       &genai.Schema{Type: genai.TypeString},
		Description: description,
	}
}

var productDescriptionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"descriptions": stringArray("An array of 2-3 different product descriptions."),
		"seo": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"metaTitle":       {Type: genai.TypeString, Description: "An SEO-optimized meta title."},
				"metaDescription": {Type: genai.TypeString, Description: "An SEO-optimized meta description."},
				"keywords":        stringArray("An array of relevant SEO keywords."),
			},
			Required: []string{"metaTitle", "metaDescription", "keywords"},
		},
		"featureBullets": stringArray("3-5 compelling bullet points highlighting key features and benefits."),
		"targetAudience": {Type: genai.TypeString, Description: "A brief description of the ideal target audience."},
		"callToActions":  stringArray("2-3 strong call-to-action phrases."),
		"hashtags":       stringArray("Relevant social media hashtags, without the '#' symbol."),
	},
	Required: []string{"descriptions", "seo", "featureBullets", "targetAudience", "callToActions", "hashtags"},
}

var socialMediaPostSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"socialMediaPosts": stringArray("An array of 2-3 distinct and engaging social media posts about the product."),
	},
	Required: []string{"socialMediaPosts"},
}

// The same shapes as JSON Schema documents, used to check what the model returned.
const productDescriptionJSONSchema = `{
  "type": "object",
  "properties": {
    "descriptions": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "seo": {
      "type": "object",
      "properties": {
        "metaTitle": {"type": "string"},
        "metaDescription": {"type": "string"},
        "keywords": {"type": "array", "items": {"type": "string"}}
      },
      "required": ["metaTitle", "metaDescription", "keywords"]
    },
    "featureBullets": {"type": "array", "items": {"type": "string"}},
    "targetAudience": {"type": "string"},
    "callToActions": {"type": "array", "items": {"type": "string"}},
    "hashtags": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["descriptions", "seo", "featureBullets", "targetAudience", "callToActions", "hashtags"]
}`

const socialMediaPostJSONSchema = `{
  "type": "object",
  "properties": {
    "socialMediaPosts": {"type": "array", "items": {"type": "string"}, "minItems": 1}
  },
  "required": ["socialMediaPosts"]
}`

func schemasFor(ct models.ContentType) (*genai.Schema, string) {
	if ct == models.ContentTypeSocialMediaPost {
		return socialMediaPostSchema, socialMediaPostJSONSchema
	}
	return productDescriptionSchema, productDescriptionJSONSchema
}
