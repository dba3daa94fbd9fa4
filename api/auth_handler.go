package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/raushankrgupta/product-descriptions-ai/auth"
	"github.com/raushankrgupta/product-descriptions-ai/utils"
)

const stateCookie = "oauth_state"

// MagicLinkRequest asks for a sign-in code
type MagicLinkRequest struct {
	Email string `json:"email"`
}

// VerifyOTPRequest exchanges an emailed code for a session
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// MagicLinkHandler emails a one-time sign-in code
func (s *Server) MagicLinkHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Magic Link API]", r)

	if r.Method != http.MethodPost {
		utils.RespondMethodNotAllowed(w, log, http.MethodPost)
		return
	}

	var req MagicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, log, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.Auth.RequestCode(r.Context(), req.Email); err != nil {
		respondErr(w, log, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message": "Check your email for your sign-in code.",
	})
}

// VerifyOTPHandler signs the user in with an emailed code
func (s *Server) VerifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Verify OTP API]", r)

	if r.Method != http.MethodPost {
		utils.RespondMethodNotAllowed(w, log, http.MethodPost)
		return
	}

	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, log, "Invalid request body", http.StatusBadRequest)
		return
	}

	signIn, err := s.Auth.VerifyCode(r.Context(), req.Email, req.OTP)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCode) {
			utils.RespondError(w, log, "Invalid or expired code", http.StatusUnauthorized)
			return
		}
		respondErr(w, log, err)
		return
	}

	log.WithField("user_id", signIn.Profile.ID).Info("Signed in with code")
	utils.RespondJSON(w, http.StatusOK, signIn)
}

// GoogleLoginHandler redirects to Google's consent screen
func (s *Server) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Google Login API]", r)

	if s.Google == nil || !s.Google.Configured() {
		utils.RespondError(w, log, "Google sign-in is not configured", http.StatusServiceUnavailable)
		return
	}

	state, err := auth.NewState()
	if err != nil {
		utils.RespondError(w, log, "Failed to start Google sign-in", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	log.Info("Redirecting to Google Auth")
	http.Redirect(w, r, s.Google.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallbackHandler finishes the Google flow and returns a session
func (s *Server) GoogleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Google Callback API]", r)

	if s.Google == nil || !s.Google.Configured() {
		utils.RespondError(w, log, "Google sign-in is not configured", http.StatusServiceUnavailable)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.FormValue("state") != cookie.Value {
		utils.RespondError(w, log, "State invalid", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/google", MaxAge: -1})

	code := r.FormValue("code")
	if code == "" {
		utils.RespondError(w, log, "Code not found", http.StatusBadRequest)
		return
	}

	user, err := s.Google.Exchange(r.Context(), code)
	if err != nil {
		utils.RespondError(w, log, err.Error(), http.StatusBadGateway)
		return
	}

	signIn, err := s.Auth.SignInEmail(r.Context(), user.Email)
	if err != nil {
		respondErr(w, log, err)
		return
	}

	log.WithField("user_id", signIn.Profile.ID).Info("Signed in with Google")
	utils.RespondJSON(w, http.StatusOK, signIn)
}
