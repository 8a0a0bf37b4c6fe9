package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MKhiriev/go-sync-store/internal/utils"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) createBlob(w http.ResponseWriter, r *http.Request) {
	var meta models.FileMetadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "JSONParseError", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, OpBlob) {
		return
	}

	meta.ID = uuid.NewString()
	meta.UploadURL = s.URL + "/upload/" + meta.ID
	s.blobs[meta.ID] = &blob{meta: meta}

	_, _ = utils.WriteJSON(w, meta, http.StatusCreated)
}

func (s *Server) blobMetadata(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, OpBlob) {
		return
	}

	b, ok := s.blobs[chi.URLParam(r, "id")]
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "BlobNotFound", "no file with this id")
		return
	}

	meta := b.meta
	meta.UploadURL = ""
	meta.DownloadURL = s.URL + "/download/" + meta.ID
	_, _ = utils.WriteJSON(w, meta, http.StatusOK)
}

// upload implements the resumable upload session. "bytes */N" asks for the
// stored range; "bytes a-b/N" appends when a equals the stored length.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, OpUpload) {
		return
	}

	b, ok := s.blobs[chi.URLParam(r, "id")]
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "BlobNotFound", "no upload session")
		return
	}

	header := r.Header.Get("Content-Range")
	if header == "" {
		b.data = body
		b.meta.Size = int64(len(body))
		_, _ = utils.WriteJSON(w, b.meta, http.StatusCreated)
		return
	}

	start, total, err := parseContentRange(header)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	b.meta.Size = total

	if start >= 0 && start == int64(len(b.data)) {
		if s.uploadChunk > 0 && len(body) > s.uploadChunk {
			body = body[:s.uploadChunk]
		}
		b.data = append(b.data, body...)
	}

	if int64(len(b.data)) >= total {
		_, _ = utils.WriteJSON(w, b.meta, http.StatusCreated)
		return
	}
	if len(b.data) > 0 {
		w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", len(b.data)-1))
	}
	w.WriteHeader(http.StatusPermanentRedirect)
}

// parseContentRange returns the first byte position (-1 for "*") and the
// total size.
func parseContentRange(header string) (int64, int64, error) {
	rangeSpec, ok := strings.CutPrefix(header, "bytes ")
	if !ok {
		return 0, 0, fmt.Errorf("invalid content range %q", header)
	}
	span, rawTotal, ok := strings.Cut(rangeSpec, "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid content range %q", header)
	}

	total, err := strconv.ParseInt(rawTotal, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid content range total %q", rawTotal)
	}
	if span == "*" {
		return -1, total, nil
	}

	rawStart, _, _ := strings.Cut(span, "-")
	start, err := strconv.ParseInt(rawStart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid content range start %q", rawStart)
	}
	return start, total, nil
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(w, OpDownload) {
		return
	}

	b, ok := s.blobs[chi.URLParam(r, "id")]
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "BlobNotFound", "no file with this id")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")

	if raw, ok := strings.CutPrefix(r.Header.Get("Range"), "bytes="); ok {
		from, err := strconv.ParseInt(strings.TrimSuffix(raw, "-"), 10, 64)
		if err == nil && from <= int64(len(b.data)) {
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(b.data[from:])
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.data)
}
