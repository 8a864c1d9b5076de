package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/simp-lee/epubsplit"
)

// formOverhead is allowed on top of MaxUploadBytes for multipart framing.
const formOverhead = 1 << 20

type analyzeResponse struct {
	Filename string `json:"filename"`
	epubsplit.Summary
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	a, err := s.conv.Analyze(data)
	if err != nil {
		s.conversionError(w, filename, err)
		return
	}
	s.log.Info("analyzed",
		zap.String("file", filename),
		zap.String("title", a.Metadata.Title),
		zap.Int("chapters", a.Summary.Chapters),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analyzeResponse{Filename: filename, Summary: a.Summary})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	res, err := s.conv.Convert(data)
	if err != nil {
		s.conversionError(w, filename, err)
		return
	}
	s.log.Info("converted",
		zap.String("file", filename),
		zap.String("book", res.Metadata.Label()),
		zap.Int("chapters", len(res.Sections)),
		zap.Int("bytes", len(res.Data)),
	)

	w.Header().Set("Content-Type", "application/epub+zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": outputName(filename),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Chapter-Count", strconv.Itoa(len(res.Sections)))
	w.Write(res.Data)
}

// readUpload reads the multipart "file" field. On failure it writes the
// error response and reports false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return "", nil, false
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".epub") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return "", nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return "", nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return "", nil, false
	}
	return filename, data, true
}

func (s *Server) conversionError(w http.ResponseWriter, filename string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error("conversion failed", zap.String("file", filename), zap.Error(err))
	} else {
		s.log.Warn("input rejected", zap.String("file", filename), zap.Error(err))
	}
	jsonError(w, epubsplit.UserMessage(err), code)
}

// statusFor maps conversion errors to HTTP status codes. Problems with the
// uploaded book are 422; anything else is a server fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, epubsplit.ErrInputFormat),
		errors.Is(err, epubsplit.ErrEmptyContent),
		errors.Is(err, epubsplit.ErrNoChapters):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed.epub"
	}
	return name
}

// outputName is the download name for a converted upload.
func outputName(filename string) string {
	return "fixed_" + filename
}
