// Package api serves the HTTP routes of the generation service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/raushankrgupta/product-descriptions-ai/auth"
	"github.com/raushankrgupta/product-descriptions-ai/bulk"
	"github.com/raushankrgupta/product-descriptions-ai/generation"
	"github.com/raushankrgupta/product-descriptions-ai/metrics"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/raushankrgupta/product-descriptions-ai/usage"
	"github.com/raushankrgupta/product-descriptions-ai/utils"
	"github.com/sirupsen/logrus"
)

const missingProductInfoMessage = "Missing required product information."

// Deps are the collaborators of a Server. Backend answers POST /api/generate; Generator
// serves gated generations and bulk runs. Google may be nil when sign-in with Google is off.
type Deps struct {
	Backend        generation.Generator
	Generator      generation.Generator
	Gate           *usage.Gate
	Bulk           *bulk.Service
	Auth           *auth.Service
	Google         *auth.GoogleProvider
	Contacts       ContactStore
	Mailer         auth.Mailer
	ContactEmail   string
	MaxUploadBytes int64
	Logger         logrus.FieldLogger
}

type Server struct {
	Deps
	validate *validator.Validate
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 10 << 20
	}
	return &Server{Deps: deps, validate: validator.New()}
}

// Routes wires every endpoint behind CORS and access logging
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	protected := func(h http.HandlerFunc) http.Handler {
		return AuthMiddleware(s.Auth.Tokens(), s.Logger, h)
	}

	mux.HandleFunc("/api/generate", s.GenerateAPIHandler)
	mux.Handle("/generate", protected(s.GenerateHandler))

	mux.Handle("POST /bulk", protected(s.BulkUploadHandler))
	mux.HandleFunc("GET /bulk/template", s.BulkTemplateHandler)
	mux.Handle("GET /bulk/{id}", protected(s.BulkStatusHandler))
	mux.Handle("GET /bulk/{id}/download", protected(s.BulkDownloadHandler))

	mux.HandleFunc("/auth/magic-link", s.MagicLinkHandler)
	mux.HandleFunc("/auth/verify-otp", s.VerifyOTPHandler)
	mux.HandleFunc("/auth/google/login", s.GoogleLoginHandler)
	mux.HandleFunc("/auth/google/callback", s.GoogleCallbackHandler)

	mux.Handle("/profile", protected(s.ProfileHandler))
	mux.HandleFunc("/contact", s.ContactHandler)

	mux.HandleFunc("GET /health", s.HealthHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	return utils.LatencyMiddleware(s.Logger, utils.CORSMiddleware(mux))
}

// HealthHandler answers liveness probes
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps a typed error to its HTTP status
func statusFor(err error) int {
	var ve models.ValidationError
	var qe models.QuotaExceededError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &qe):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCode), errors.Is(err, usage.ErrProfileNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, bulk.ErrJobNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes err with the status statusFor picks
func respondErr(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	message := err.Error()
	if errors.Is(err, usage.ErrProfileNotFound) {
		message = "Unauthorized"
	}
	utils.RespondError(w, log, message, statusFor(err))
}

// GenerateAPIHandler is the generation backend: it validates the request and
// returns the generated kit without touching any usage counter.
func (s *Server) GenerateAPIHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Generate API]", r)

	if r.Method != http.MethodPost {
		utils.RespondMethodNotAllowed(w, log, http.MethodPost)
		return
	}

	var info models.ProductInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		log.WithError(err).Debug("Invalid request body")
		utils.RespondError(w, log, missingProductInfoMessage, http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(info); err != nil {
		log.WithError(err).Debug("Request failed validation")
		utils.RespondError(w, log, missingProductInfoMessage, http.StatusBadRequest)
		return
	}

	log.WithFields(logrus.Fields{"product": info.ProductName, "content_type": info.ContentType}).Info("Generating content")
	resp, err := s.Backend.Generate(r.Context(), info)
	if err != nil {
		metrics.GenerationRequests.WithLabelValues("api", metrics.OutcomeFailure).Inc()
		utils.RespondError(w, log, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.GenerationRequests.WithLabelValues("api", metrics.OutcomeSuccess).Inc()

	log.Info("Generation successful")
	utils.RespondJSON(w, http.StatusOK, resp)
}

type generateResponse struct {
	Data       *models.GenerateResponse `json:"data"`
	UsageCount int                      `json:"usage_count"`
	UsageLimit int                      `json:"usage_limit"`
	Warning    string                   `json:"warning,omitempty"`
}

// GenerateHandler runs one usage-gated generation for the signed-in account
func (s *Server) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Generate]", r)

	if r.Method != http.MethodPost {
		utils.RespondMethodNotAllowed(w, log, http.MethodPost)
		return
	}

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, log, "Unauthorized", http.StatusUnauthorized)
		return
	}
	log = log.WithField("user_id", userID)

	var info models.ProductInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		utils.RespondError(w, log, "Invalid request body", http.StatusBadRequest)
		return
	}
	info = info.Trimmed()
	if info.Language == "" {
		info.Language = models.DefaultLanguage
	}
	if info.ContentType == "" {
		info.ContentType = models.ContentTypeProductDescription
	}
	if err := validateSingle(info); err != nil {
		respondErr(w, log, err)
		return
	}

	session, err := s.Gate.Begin(r.Context(), userID)
	if err != nil {
		respondErr(w, log, err)
		return
	}

	result, err := session.Generate(r.Context(), s.Generator, info)
	if err != nil {
		if generation.IsRemoteError(err) {
			utils.RespondError(w, log, err.Error(), http.StatusBadGateway)
			return
		}
		respondErr(w, log, err)
		return
	}

	log.WithField("usage_count", result.UsageCount).Info("Generation successful")
	utils.RespondJSON(w, http.StatusOK, generateResponse{
		Data:       result.Response,
		UsageCount: result.UsageCount,
		UsageLimit: session.Limit(),
		Warning:    result.Warning,
	})
}

func validateSingle(info models.ProductInfo) error {
	if info.ProductName == "" || info.Description == "" {
		return models.ValidationError{Message: "Please enter a product name and description."}
	}
	if !models.IsKnownTone(info.Tone) {
		return models.ValidationError{Message: "Please choose a supported tone."}
	}
	if !models.IsKnownContentType(info.ContentType) {
		return models.ValidationError{Message: "Please choose a supported content type."}
	}
	return nil
}
