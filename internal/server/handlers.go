package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/agilerag/internal/metadata"
	"github.com/hyperjump/agilerag/internal/models"
	"github.com/hyperjump/agilerag/internal/storage"
)

type uploadRequest struct {
	Category string `validate:"omitempty,oneof=scrum kanban syllabus general"`
}

type deleteUnitsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.collection.Count(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"version":        s.version,
		"collection":     s.collection.Name(),
		"units":          count,
		"llm_provider":   s.answerer.Provider(),
		"providers":      s.providers,
		"search_enabled": s.answerer.SearchEnabled(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.collection.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count units failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	resp := map[string]interface{}{
		"collection":      s.collection.Name(),
		"units":           count,
		"embedding_model": s.collection.ModelID(),
	}
	if s.indexer != nil {
		docs, err := s.indexer.Documents()
		if err != nil {
			s.respondErr(w, err)
			return
		}
		resp["documents"] = len(docs)
	}
	resp["config"] = map[string]interface{}{
		"chunk_size":        s.config.Ingest.ChunkSize,
		"chunk_overlap":     s.config.Ingest.ChunkOverlap,
		"top_k":             s.config.RAG.TopK,
		"max_context_chars": s.config.RAG.MaxContextChars,
		"min_score":         s.config.RAG.MinScore,
		"persist_path":      s.config.Storage.PersistPath,
	}
	if diskBytes, err := storage.DiskUsageBytes(s.config.Storage.PersistPath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if err := metadata.ValidateFilter(req.Filter); err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Debug("query request", zap.String("question", req.Question), zap.Int("k", req.K))
	answer, err := s.answerer.Query(r.Context(), req)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	req := uploadRequest{Category: strings.TrimSpace(r.FormValue("category"))}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	tmpDir, err := os.MkdirTemp("", "agilerag-upload-*")
	if err != nil {
		s.respondErr(w, err)
		return
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, name)
	if err := writeUpload(path, file); err != nil {
		s.respondErr(w, err)
		return
	}

	units, err := s.indexer.Ingestor().Process(path, req.Category)
	if err != nil {
		s.logger.Warn("upload rejected", zap.String("file", name), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	for _, u := range units {
		u.Metadata[models.KeySourcePath] = name
	}
	var ids []string
	if len(units) > 0 {
		if ids, err = s.collection.Add(r.Context(), units); err != nil {
			s.logger.Error("indexing upload failed", zap.Error(err))
			s.respondErr(w, err)
			return
		}
	}
	category := req.Category
	if len(units) > 0 {
		category, _ = units[0].Metadata.String(models.KeyCategory)
	}
	s.logger.Info("upload ingested", zap.String("file", name), zap.Int("units", len(units)))
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"file":     name,
		"category": category,
		"units":    len(units),
		"ids":      ids,
	})
}

func writeUpload(path string, src io.Reader) error {
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": []interface{}{}})
		return
	}
	entries, err := s.indexer.Documents()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	docs := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, map[string]interface{}{
			"path":        e.Path,
			"category":    e.Category,
			"file_hash":   e.FileHash,
			"units":       len(e.UnitIDs),
			"ingested_at": e.IngestedAt,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleDeleteUnits(w http.ResponseWriter, r *http.Request) {
	var req deleteUnitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	existing, err := s.collection.Get(r.Context(), req.IDs)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if len(existing) == 0 {
		s.respondErr(w, models.ErrNotFound)
		return
	}
	ids := make([]string, len(existing))
	for i, u := range existing {
		ids[i] = u.ID
	}
	if _, err := s.collection.Delete(r.Context(), ids); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "deleted": len(ids)})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	if err := s.indexer.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
