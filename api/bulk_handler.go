package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/raushankrgupta/product-descriptions-ai/bulk"
	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/raushankrgupta/product-descriptions-ai/sheets"
	"github.com/raushankrgupta/product-descriptions-ai/utils"
	"github.com/sirupsen/logrus"
)

// BulkUploadHandler accepts a product file and starts a background run
func (s *Server) BulkUploadHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Bulk Upload API]", r)

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, log, "Unauthorized", http.StatusUnauthorized)
		return
	}
	log = log.WithField("user_id", userID)

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, log, fmt.Sprintf("File is too large. The limit is %d MB.", s.MaxUploadBytes>>20), http.StatusRequestEntityTooLarge)
			return
		}
		utils.RespondError(w, log, "Error parsing form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, log, "Please select a file to process.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, log, "Error reading uploaded file", http.StatusBadRequest)
		return
	}
	log.WithFields(logrus.Fields{"file": header.Filename, "size": len(data)}).Info("Received bulk file")

	job, err := s.Bulk.Start(r.Context(), userID, header.Filename, data, bulk.Settings{
		Tone:        r.FormValue("tone"),
		Language:    r.FormValue("language"),
		ContentType: models.ContentType(r.FormValue("content_type")),
	})
	if err != nil {
		respondErr(w, log, err)
		return
	}

	log.WithField("job_id", job.ID).Info("Bulk job started")
	utils.RespondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"total":  job.Progress.Total,
		"status": job.Status,
	})
}

// BulkStatusHandler reports a job's progress, counts and failed rows
func (s *Server) BulkStatusHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Bulk Status API]", r)

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, log, "Unauthorized", http.StatusUnauthorized)
		return
	}

	job, err := s.Bulk.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		respondErr(w, log, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, job)
}

// BulkDownloadHandler redirects to the stored export, or streams it when no link can be issued
func (s *Server) BulkDownloadHandler(w http.ResponseWriter, r *http.Request) {
	log := utils.RequestLogger(s.Logger, "[Bulk Download API]", r)

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, log, "Unauthorized", http.StatusUnauthorized)
		return
	}

	artifact, err := s.Bulk.Download(r.Context(), userID, r.PathValue("id"), r.URL.Query().Get("format"))
	if err != nil {
		respondErr(w, log, err)
		return
	}

	if artifact.URL != "" {
		http.Redirect(w, r, artifact.URL, http.StatusFound)
		return
	}
	writeAttachment(w, artifact.FileName, artifact.ContentType, artifact.Data)
}

// BulkTemplateHandler serves the CSV template users fill in
func (s *Server) BulkTemplateHandler(w http.ResponseWriter, r *http.Request) {
	writeAttachment(w, "product_template.csv", "text/csv", []byte(sheets.TemplateCSV))
}

func writeAttachment(w http.ResponseWriter, fileName, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
