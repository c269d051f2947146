package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Algernon72/PDF2PACS/internal/batch"
	"github.com/Algernon72/PDF2PACS/internal/models"
	"github.com/Algernon72/PDF2PACS/internal/storage"
)

const listLimit = 50

// Sender runs one send operation; satisfied by *batch.Orchestrator.
type Sender interface {
	Send(ctx context.Context, req batch.Request) batch.Report
}

// APIHandler holds dependencies for API handlers.
type APIHandler struct {
	sender  Sender
	journal storage.SendJournal
}

// NewAPIHandler creates a new handler instance.
func NewAPIHandler(sender Sender, journal storage.SendJournal) *APIHandler {
	return &APIHandler{sender: sender, journal: journal}
}

// UploadHandler accepts a multipart form with one or more "pdf" files
// plus the patient fields and option flags, runs the send, and returns
// the report. A failed upload maps to 502; input problems to 400.
func (h *APIHandler) UploadHandler(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid multipart form: %v", err)})
		return
	}
	files := form.File["pdf"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "add at least one PDF file under the 'pdf' field"})
		return
	}

	tmpDir, err := os.MkdirTemp("", "pdf2pacs-upload-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stage uploaded files"})
		return
	}
	defer os.RemoveAll(tmpDir)

	sources := make([]string, 0, len(files))
	for i, f := range files {
		dst := filepath.Join(tmpDir, fmt.Sprintf("%03d_%s", i, filepath.Base(f.Filename)))
		if err := c.SaveUploadedFile(f, dst); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to stage %s", f.Filename)})
			return
		}
		sources = append(sources, dst)
	}

	req := batch.Request{
		Sources: sources,
		Patient: batch.PatientFields{
			FamilyName: c.PostForm("familyName"),
			GivenName:  c.PostForm("givenName"),
			BirthDate:  c.PostForm("birthDate"),
			PatientID:  c.PostForm("patientId"),
		},
		Options: batch.SendOptions{
			MakePreview:  formBool(c, "makePreview", true),
			AllPages:     formBool(c, "allPages", true),
			SeriesPerPDF: formBool(c, "seriesPerPdf", true),
		},
	}

	rep := h.sender.Send(c.Request.Context(), req)
	h.record(c.Request.Context(), rep)

	status := http.StatusOK
	if !rep.OK {
		status = http.StatusBadGateway
	}
	c.JSON(status, rep)
}

// ListUploadsHandler returns the most recent send records.
func (h *APIHandler) ListUploadsHandler(c *gin.Context) {
	records, err := h.journal.ListRecent(c.Request.Context(), listLimit)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to list send records", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to retrieve send history"})
		return
	}
	if records == nil {
		records = []models.SendRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"uploads": records})
}

// HealthCheckHandler handles health check requests.
func (h *APIHandler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// record journals the outcome; journal failures are logged, never
// surfaced to the client.
func (h *APIHandler) record(ctx context.Context, rep batch.Report) {
	if h.journal == nil {
		return
	}
	rec := models.SendRecord{
		StudyUID:  rep.StudyUID,
		PatientID: rep.PatientID,
		Instances: rep.Instances,
		OK:        rep.OK,
		Message:   rep.Message,
		CreatedAt: time.Now(),
	}
	if err := h.journal.RecordSend(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "failed to journal send", "studyUID", rep.StudyUID, "error", err)
	}
}

func formBool(c *gin.Context, key string, fallback bool) bool {
	v, err := strconv.ParseBool(c.DefaultPostForm(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}
