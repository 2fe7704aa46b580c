package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/colsplit/internal/core"
	"github.com/JonMunkholm/colsplit/internal/logging"
	"github.com/JonMunkholm/colsplit/internal/web/templates"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// multipartOverhead allows for form fields and part headers on top of the
// file itself.
const multipartOverhead = 1 << 20

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := templates.UploadPage(templates.UploadPageData{
		MaxFileSizeMB: s.cfg.Upload.MaxFileSize / (1024 * 1024),
		Extensions:    core.SupportedExtensions,
	})
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render upload page", "error", err)
	}
}

// upload is the file part of a multipart request.
type upload struct {
	name string
	data []byte
}

// readUpload reads the "file" part, bounded by UPLOAD_MAX_FILE_SIZE.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return upload{}, fmt.Errorf("%w: limit is %d bytes", errFileTooBig, maxSize)
		}
		return upload{}, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return upload{}, errNoFile
	}
	defer file.Close()

	if header.Size > maxSize {
		return upload{}, fmt.Errorf("%w: %d bytes, limit is %d", errFileTooBig, header.Size, maxSize)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, fmt.Errorf("read upload: %w", err)
	}
	return upload{name: header.Filename, data: data}, nil
}

// handleInspect returns the columns of an uploaded file so a client can pick
// the split column.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	ins, err := s.service.Inspect(r.Context(), up.name, up.data)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, ins)
}

type splitAccepted struct {
	TaskID string          `json:"task_id"`
	Status core.TaskStatus `json:"status"`
}

// handleSplit accepts an upload and starts a background split.
func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	batchSize, err := parseBatchSize(r.FormValue("batch_size"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	taskID, err := s.service.StartSplit(r.Context(), core.SplitRequest{
		FileName:  up.name,
		Data:      up.data,
		Column:    r.FormValue("column_name"),
		BatchSize: batchSize,
	})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, r, http.StatusAccepted, splitAccepted{TaskID: taskID, Status: core.StatusPending})
}

// parseBatchSize treats an empty value as no batching.
func parseBatchSize(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &core.SplitError{Kind: core.KindSchema, Message: fmt.Sprintf("batch size must be a whole number, got %q", raw)}
	}
	return n, nil
}

// taskResponse is the public view of a task.
type taskResponse struct {
	TaskID       string            `json:"task_id"`
	Status       core.TaskStatus   `json:"status"`
	Filename     string            `json:"filename"`
	FileSizeMB   float64           `json:"file_size_mb"`
	ColumnName   string            `json:"column_name"`
	BatchSize    int               `json:"batch_size,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ErrorMessage string            `json:"error_message,omitempty"`
	TotalRows    int               `json:"total_rows,omitempty"`
	SplitGroups  int               `json:"split_groups,omitempty"`
	OutputFiles  int               `json:"output_files,omitempty"`
	FileDetails  []core.FileDetail `json:"file_details,omitempty"`
}

func newTaskResponse(t core.Task) taskResponse {
	resp := taskResponse{
		TaskID:       t.ID,
		Status:       t.Status,
		Filename:     t.FileName,
		FileSizeMB:   t.FileSizeMB(),
		ColumnName:   t.ColumnName,
		BatchSize:    t.BatchSize,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		ErrorMessage: t.ErrorMessage,
	}
	if t.Result != nil && t.Result.Success {
		resp.TotalRows = t.Result.TotalRows
		resp.SplitGroups = t.Result.SplitGroups
		resp.OutputFiles = t.Result.OutputFiles
		resp.FileDetails = t.Result.FileDetails
	}
	return resp
}

// handleTaskStatus reports the state of one task.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, newTaskResponse(task))
}

// handleDownload streams the archive of a completed task.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	dl, err := s.service.OpenArchive(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer dl.Body.Close()

	if dl.Digest != "" {
		etag := `"` + dl.Digest + `"`
		w.Header().Set("ETag", etag)
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.FileName}))
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}

	if _, err := io.Copy(w, dl.Body); err != nil {
		logging.FromContext(r.Context()).Warn("archive download interrupted", "error", err)
	}
}

// etagMatches checks an If-None-Match header against etag.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
