package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/pdfchat-go/internal/errkind"
	"github.com/54b3r/pdfchat-go/internal/ingestion"
	"github.com/54b3r/pdfchat-go/internal/logging"
	"github.com/54b3r/pdfchat-go/internal/rag"
)

const (
	// clientCookie scopes an index to one browser.
	clientCookie = "pdfchat_client"
	// uploadField is the multipart field holding the PDFs.
	uploadField = "files"
	// keyField is the multipart field that may carry the chat key instead of
	// the header.
	keyField = "apiKey"
	// multipartMemory is how much of an upload is buffered in memory before
	// spilling to temporary files.
	multipartMemory = 32 << 20
)

// clientID returns the caller's client id, issuing a new cookie when the
// request has none or an unparseable one.
func clientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(clientCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// handleDocumentsUpload handles POST /api/documents.
// Every PDF in the "files" field is parsed, chunked and embedded into a new
// index that replaces the client's previous one. Without a chat key the
// request gets the same warning as /api/chat and nothing is parsed or
// embedded. A request with no files builds nothing.
func (s *Server) handleDocumentsUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)
	client := clientID(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorStatus(ctx, w, http.StatusRequestEntityTooLarge, errkind.Invalid,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(ctx, w, errkind.Wrap(errkind.Invalid, "", fmt.Errorf("invalid multipart body: %w", err)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	if formKey(r) == "" {
		log.Info("documents: no chat key, upload ignored")
		writeJSON(ctx, w, http.StatusOK, warningResponse{Warning: missingKeyWarning})
		return
	}

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		log.Info("documents: no files uploaded, index unchanged")
		indexed := false
		writeJSON(ctx, w, http.StatusOK, documentsResponse{
			Ready:   s.indexes.Get(client) != nil,
			Indexed: &indexed,
		})
		return
	}

	uploads, err := readUploads(headers)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	start := time.Now()
	idx, err := s.deps.Indexer.BuildFromPDFs(ctx, uploads)
	elapsed := time.Since(start)
	if err != nil {
		kind := errkind.KindOf(err)
		s.metrics.indexBuildsTotal.WithLabelValues(string(kind)).Inc()
		log.Warn("documents: index build failed",
			slog.String("kind", string(kind)),
			slog.Int("files", len(uploads)),
			slog.Any("error", err),
		)
		writeError(ctx, w, err)
		return
	}
	s.metrics.indexBuildsTotal.WithLabelValues("ok").Inc()
	s.metrics.indexBuildDurationSeconds.Observe(elapsed.Seconds())
	s.metrics.indexedChunks.Observe(float64(idx.Chunks))

	s.indexes.Replace(client, idx)
	log.Info("documents: index ready",
		slog.String("index_id", idx.ID),
		slog.Int("files", len(idx.Files)),
		slog.Int("pages", idx.Pages),
		slog.Int("chunks", idx.Chunks),
		slog.Duration("duration", elapsed),
	)

	indexed := true
	resp := describeIndex(idx)
	resp.Indexed = &indexed
	writeJSON(ctx, w, http.StatusOK, resp)
}

// handleDocuments handles GET /api/documents and reports what the client's
// current index holds.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	idx := s.indexes.Get(clientID(w, r))
	if idx == nil {
		writeJSON(r.Context(), w, http.StatusOK, documentsResponse{Ready: false})
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, describeIndex(idx))
}

func describeIndex(idx *rag.Index) documentsResponse {
	builtAt := idx.BuiltAt
	return documentsResponse{
		Ready:   true,
		IndexID: idx.ID,
		Files:   idx.Files,
		Pages:   idx.Pages,
		Chunks:  idx.Chunks,
		BuiltAt: &builtAt,
	}
}

// formKey returns the chat key from the header or, failing that, the parsed
// multipart form.
func formKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get(apiKeyHeader)); k != "" {
		return k
	}
	return strings.TrimSpace(r.FormValue(keyField))
}

// readUploads reads every part into memory, rejecting anything that is not
// named like a PDF.
func readUploads(headers []*multipart.FileHeader) ([]ingestion.Upload, error) {
	uploads := make([]ingestion.Upload, 0, len(headers))
	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			return nil, errkind.New(errkind.Invalid, "", "%s: only PDF files are accepted", name)
		}
		data, err := readPart(fh)
		if err != nil {
			return nil, errkind.Wrap(errkind.Invalid, name, err)
		}
		uploads = append(uploads, ingestion.Upload{Name: name, Data: data})
	}
	return uploads, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}
