// Package generation calls the content generation API.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/sirupsen/logrus"
)

const (
	// GeneratePath is where the generation backend listens
	GeneratePath = "/api/generate"

	NetworkErrorMessage    = "Network error: Could not connect to the server. Please check your internet connection and try again."
	InvalidResponseMessage = "Invalid response structure from our API proxy."
)

// Generator produces a marketing kit for one product
type Generator interface {
	Generate(ctx context.Context, info models.ProductInfo) (*models.GenerateResponse, error)
}

// RemoteError is a failed generation call. Message is safe to show to users.
type RemoteError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Err }

// Client talks to the generation backend over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// NewClient returns a client for the backend at baseURL. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, logger logrus.FieldLogger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Generate posts info to the backend and decodes the generated kit
func (c *Client) Generate(ctx context.Context, info models.ProductInfo) (*models.GenerateResponse, error) {
	payload, err := json.Marshal(info)
	if err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("failed to encode request: %v", err), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+GeneratePath, bytes.NewReader(payload))
	if err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("failed to build request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Error("Error calling generation API")
		return nil, &RemoteError{Message: NetworkErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WithError(err).Error("Error reading generation API response")
		return nil, &RemoteError{Message: NetworkErrorMessage, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := errorMessage(body)
		if message == "" {
			message = fmt.Sprintf("API request failed with status: %d", resp.StatusCode)
		}
		c.logger.WithField("status_code", resp.StatusCode).Warn(message)
		return nil, &RemoteError{Message: message, StatusCode: resp.StatusCode}
	}

	var result models.GenerateResponse
	if !isJSONObject(body) {
		return nil, &RemoteError{Message: InvalidResponseMessage, StatusCode: resp.StatusCode}
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &RemoteError{Message: InvalidResponseMessage, StatusCode: resp.StatusCode, Err: err}
	}
	return &result, nil
}

// errorMessage extracts a string "error" field, or "" when the body has none
func errorMessage(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return ""
	}
	var message string
	if err := json.Unmarshal(payload.Error, &message); err != nil {
		return ""
	}
	return message
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

// IsRemoteError reports whether err carries a RemoteError
func IsRemoteError(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote)
}
