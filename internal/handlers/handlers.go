// Package handlers provides HTTP handlers for the stamping API.
//
// This package contains the HTTP endpoints for session management,
// template and image upload, field inspection, stamping and download.
//
// Example usage:
//
//	h := handlers.NewAPIHandler(sessionManager, cfg)
//	r := chi.NewRouter()
//	r.Post("/api/sessions/", h.CreateSession)
//
// All handlers are designed to be used with the chi router.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go-pdfstamper/internal/config"
	"go-pdfstamper/internal/job"
	"go-pdfstamper/internal/session"
	"go-pdfstamper/internal/stamper"
	"go-pdfstamper/internal/utils"

	"github.com/go-chi/chi/v5"
)

// MaxJobSize caps the body of a stamp request.
const MaxJobSize = 1 << 20

type APIHandler struct {
	SessionManager *session.SessionManager
	UploadDir      string
	OutputDir      string
	MaxUploadSize  int64
	MaxImageSize   int64
	DefaultFont    string

	stamp func(template, output string, j *job.Job, assets job.Assets) error
}

func NewAPIHandler(sm *session.SessionManager, cfg *config.Config) *APIHandler {
	return &APIHandler{
		SessionManager: sm,
		UploadDir:      cfg.UploadDir,
		OutputDir:      cfg.OutputDir,
		MaxUploadSize:  cfg.MaxUploadSize,
		MaxImageSize:   cfg.MaxImageSize,
		DefaultFont:    cfg.DefaultFont,
		stamp:          stampFile,
	}
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, exists := h.SessionManager.GetSession(chi.URLParam(r, "sessionID"))
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
	}
	return s, exists
}

// CreateSession godoc
// @Summary      Create a new session
// @Description  Creates a new stamping session and returns a session ID
// @Tags         sessions
// @Produce      json
// @Success      200  {object}  map[string]string  "{ sessionId: string }"
// @Router       /api/sessions/ [post]
func (h *APIHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.SessionManager.CreateSession()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"sessionId": "%s"}`, session.ID)
}

// UploadTemplate godoc
// @Summary      Upload a PDF template
// @Description  Uploads the AcroForm template of the session, replacing an earlier one
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Param        sessionID  path      string  true  "Session ID"
// @Param        pdf        formData  file    true  "PDF template"
// @Success      200  {object}  map[string]interface{}  "{ filename: string, size: int, pages: int, fields: int }"
// @Failure      400  {string}  string  "Bad request"
// @Failure      404  {string}  string  "Session not found"
// @Router       /api/sessions/{sessionID}/template [post]
func (h *APIHandler) UploadTemplate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadSize)
	if err := r.ParseMultipartForm(h.MaxUploadSize); err != nil {
		http.Error(w, "File too large", http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("pdf")
	if err != nil {
		http.Error(w, "Error retrieving file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	sanitizeFilename := utils.SanitizeFilename(handler.Filename)
	if strings.ToLower(filepath.Ext(handler.Filename)) != ".pdf" {
		http.Error(w, "Only PDF files are allowed", http.StatusBadRequest)
		return
	}

	header := make([]byte, 5)
	if _, err := io.ReadFull(file, header); err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}
	if string(header) != "%PDF-" {
		http.Error(w, "Uploaded file is not a valid PDF", http.StatusBadRequest)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "Failed to process file", http.StatusInternalServerError)
		return
	}

	// Parse once so broken templates are rejected at upload time.
	tpl, err := stamper.Open(file)
	if err != nil {
		log.Printf("Rejected template %s: %v", sanitizeFilename, err)
		http.Error(w, "Uploaded file is not a readable PDF", http.StatusBadRequest)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "Failed to process file", http.StatusInternalServerError)
		return
	}

	filename := utils.StoredName("tpl", handler.Filename)
	path := filepath.Join(h.UploadDir, filename)
	if err := saveUpload(path, file); err != nil {
		log.Printf("Error saving template: %v", err)
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	session.SetTemplate(path)
	writeJSON(w, map[string]any{
		"filename": filename,
		"size":     handler.Size,
		"pages":    tpl.PageCount(),
		"fields":   len(tpl.FieldNames()),
	})
}

var imageExtensions = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
	"image/bmp":  {".bmp"},
	"image/webp": {".webp"},
}

// UploadImage godoc
// @Summary      Upload an image asset
// @Description  Uploads an image (PNG, JPEG, GIF, BMP, WebP) that stamping jobs reference by name
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Param        sessionID  path      string  true  "Session ID"
// @Param        image      formData  file    true  "Image file"
// @Success      200  {object}  map[string]interface{}  "{ name: string, size: int }"
// @Failure      400  {string}  string  "Bad request - invalid image format"
// @Failure      404  {string}  string  "Session not found"
// @Router       /api/sessions/{sessionID}/images [post]
func (h *APIHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxImageSize)
	if err := r.ParseMultipartForm(h.MaxImageSize); err != nil {
		http.Error(w, "File too large", http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Error retrieving file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	header := make([]byte, 512)
	n, err := file.Read(header)
	if err != nil && err != io.EOF {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "Failed to process file", http.StatusInternalServerError)
		return
	}

	contentType := http.DetectContentType(header[:n])
	extensions, allowed := imageExtensions[contentType]
	if !allowed {
		http.Error(w, "Invalid image format", http.StatusBadRequest)
		return
	}
	if !slices.Contains(extensions, strings.ToLower(filepath.Ext(handler.Filename))) {
		http.Error(w, "File extension doesn't match content type", http.StatusBadRequest)
		return
	}

	name := utils.SanitizeFilename(handler.Filename)
	path := filepath.Join(h.UploadDir, utils.StoredName("img", name))
	if err := saveUpload(path, file); err != nil {
		log.Printf("Error saving image: %v", err)
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	session.AddAsset(name, path)
	writeJSON(w, map[string]any{"name": name, "size": handler.Size})
}

// ListFields godoc
// @Summary      Inspect template fields
// @Description  Lists field names, types, widget placements and checkbox states of the session template
// @Tags         files
// @Produce      json
// @Param        sessionID  path      string  true  "Session ID"
// @Success      200  {array}   stamper.FieldInfo
// @Failure      400  {string}  string  "No template uploaded"
// @Failure      404  {string}  string  "Session not found"
// @Router       /api/sessions/{sessionID}/fields [get]
func (h *APIHandler) ListFields(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	template := session.GetTemplate()
	if template == "" {
		http.Error(w, "No template uploaded", http.StatusBadRequest)
		return
	}
	s, err := stamper.OpenFile(template)
	if err != nil {
		log.Printf("Error opening template: %v", err)
		http.Error(w, "Failed to open template", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.Fields())
}

// Stamp godoc
// @Summary      Stamp the template
// @Description  Applies a stamping job to the session template, flattens it and returns a download URL
// @Tags         stamping
// @Accept       json
// @Produce      json
// @Param        sessionID  path      string   true  "Session ID"
// @Param        job        body      job.Job  true  "Stamping job"
// @Success      200  {object}  map[string]string  "{ downloadUrl: string }"
// @Failure      400  {string}  string  "Invalid job or template"
// @Failure      404  {string}  string  "Session or asset not found"
// @Failure      409  {string}  string  "Stamping already in progress or done"
// @Failure      413  {string}  string  "Job too large"
// @Router       /api/sessions/{sessionID}/actions/stamp [post]
func (h *APIHandler) Stamp(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJobSize)
	j, err := job.Decode(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Job too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if j.Font == "" {
		j.Font = h.DefaultFont
	}

	template := sess.GetTemplate()
	if template == "" {
		http.Error(w, "No template uploaded", http.StatusBadRequest)
		return
	}

	sess.Mutex.Lock()
	if sess.StampStatus == session.StatusInProgress {
		sess.Mutex.Unlock()
		http.Error(w, "Stamping already in progress", http.StatusConflict)
		return
	}
	if sess.StampStatus == session.StatusDone {
		sess.Mutex.Unlock()
		http.Error(w, "Template already stamped", http.StatusConflict)
		return
	}
	sess.StampStatus = session.StatusInProgress
	sess.Mutex.Unlock()

	stamped := false
	defer func() {
		if !stamped {
			sess.Mutex.Lock()
			sess.StampStatus = session.StatusIdle
			sess.Mutex.Unlock()
		}
	}()

	outputFilename := fmt.Sprintf("stamped-%s.pdf", utils.GenerateUUID())
	outputPath := filepath.Join(h.OutputDir, outputFilename)
	if err := h.runStamp(template, outputPath, j, sess); err != nil {
		os.Remove(outputPath)
		log.Printf("Error stamping template: %v", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	sess.Mutex.Lock()
	sess.OutputFile = outputPath
	sess.StampStatus = session.StatusDone
	sess.Mutex.Unlock()
	stamped = true
	downloadURL := fmt.Sprintf("/api/sessions/%s/files/%s", sess.ID, outputFilename)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"downloadUrl": "%s"}`, downloadURL)
}

// runStamp turns a panic in the stamping pass into an error so the session
// is released.
func (h *APIHandler) runStamp(template, output string, j *job.Job, assets job.Assets) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("stamping failed: %v", p)
		}
	}()
	return h.stamp(template, output, j, assets)
}

func stampFile(template, output string, j *job.Job, assets job.Assets) error {
	s, err := stamper.OpenFile(template)
	if err != nil {
		return err
	}
	if err := job.Apply(s, j, assets); err != nil {
		return err
	}
	return s.SaveAs(output)
}

// statusFor maps stamping errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, stamper.ErrFinalized):
		return http.StatusConflict
	case errors.Is(err, job.ErrInvalid),
		errors.Is(err, stamper.ErrTemplateOpen),
		errors.Is(err, stamper.ErrFieldNotFound),
		errors.Is(err, stamper.ErrFieldTypeMismatch),
		errors.Is(err, stamper.ErrConfiguration),
		errors.Is(err, stamper.ErrFontAfterValue):
		return http.StatusBadRequest
	case errors.Is(err, job.ErrAssetNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// DownloadFile godoc
// @Summary      Download stamped PDF
// @Description  Downloads the stamped PDF file for the session
// @Tags         files
// @Produce      application/pdf
// @Param        sessionID  path      string  true  "Session ID"
// @Param        filename   path      string  true  "Stamped PDF filename"
// @Success      200  {file}  file  "PDF file download"
// @Failure      403  {string}  string  "Unauthorized access to file"
// @Failure      404  {string}  string  "Session or file not found"
// @Router       /api/sessions/{sessionID}/files/{filename} [get]
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	filename := chi.URLParam(r, "filename")
	path := filepath.Join(h.OutputDir, filename)
	session.Mutex.Lock()
	output := session.OutputFile
	session.Mutex.Unlock()
	if output != path {
		http.Error(w, "Unauthorized access to file", http.StatusForbidden)
		return
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=\"stamped.pdf\"")
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, path)
	go func() {
		time.Sleep(1 * time.Second)
		session.Cleanup()
		h.SessionManager.DeleteSession(session.ID)
	}()
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
