package gemini

import (
	"fmt"
	"strings"

	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/xeipuuv/gojsonschema"
)

// OutputValidator checks model output against the response schema of its content type
type OutputValidator struct {
	schemas map[models.ContentType]*gojsonschema.Schema
}

func NewOutputValidator() (*OutputValidator, error) {
	ov := &OutputValidator{schemas: make(map[models.ContentType]*gojsonschema.Schema)}
	for _, ct := range []models.ContentType{models.ContentTypeProductDescription, models.ContentTypeSocialMediaPost} {
		_, raw := schemasFor(ct)
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", ct, err)
		}
		ov.schemas[ct] = schema
	}
	return ov, nil
}

// Validate returns an error listing every violation in document
func (ov *OutputValidator) Validate(ct models.ContentType, document []byte) error {
	schema, ok := ov.schemas[ct]
	if !ok {
		schema = ov.schemas[models.ContentTypeProductDescription]
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("model response is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("Model response did not match the expected schema: %s", strings.Join(problems, "; "))
}
