package api

import (
	"net/http"

	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/raushankrgupta/product-descriptions-ai/utils"
)

type profileResponse struct {
	Profile      *models.Profile `json:"profile"`
	UsageLimit   int             `json:"usage_limit"`
	LimitReached bool            `json:"limit_reached"`
	State        string          `json:"state"`
}

// ProfileHandler returns the signed-in account and where it stands against the quota
func (s *Server) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Profile API]", r)

	if r.Method != http.MethodGet {
		utils.RespondMethodNotAllowed(w, log, http.MethodGet)
		return
	}

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, log, "Unauthorized", http.StatusUnauthorized)
		return
	}

	session, err := s.Gate.Begin(r.Context(), userID)
	if err != nil {
		respondErr(w, log, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, profileResponse{
		Profile:      session.Profile(),
		UsageLimit:   session.Limit(),
		LimitReached: session.IsLimitReached(),
		State:        session.State().String(),
	})
}
