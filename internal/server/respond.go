package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/54b3r/pdfchat-go/internal/errkind"
	"github.com/54b3r/pdfchat-go/internal/logging"
	"github.com/54b3r/pdfchat-go/internal/rag"
)

// excerptLen bounds the chunk text echoed back with each source.
const excerptLen = 240

// statusFor maps an error kind to the HTTP status the UI expects.
func statusFor(kind errkind.Kind) int {
	switch kind {
	case errkind.Credential:
		return http.StatusUnauthorized
	case errkind.Parse:
		return http.StatusUnprocessableEntity
	case errkind.ServiceUnavailable:
		return http.StatusBadGateway
	case errkind.Invalid:
		return http.StatusBadRequest
	case errkind.NotReady:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a JSON error envelope with the status its kind maps to.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errkind.KindOf(err)
	writeErrorStatus(ctx, w, statusFor(kind), kind, err.Error())
}

func writeErrorStatus(ctx context.Context, w http.ResponseWriter, status int, kind errkind.Kind, msg string) {
	if status >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error("request failed",
			slog.String("kind", string(kind)),
			slog.String("error", msg),
		)
	}
	writeJSON(ctx, w, status, errorBody{Error: errorDetail{Kind: string(kind), Message: msg}})
}

// writeJSON encodes v with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Error("server: encode error", slog.Any("error", err))
	}
}

// sourceRefs summarises the chunks an answer was built from.
func sourceRefs(docs []rag.Document) []sourceRef {
	refs := make([]sourceRef, 0, len(docs))
	for _, d := range docs {
		source := d.Source
		if source == "" {
			source = d.Metadata[rag.MetaSource]
		}
		refs = append(refs, sourceRef{
			Source:  source,
			Page:    d.Metadata[rag.MetaPage],
			Score:   d.Score,
			Excerpt: excerpt(d.Content, excerptLen),
		})
	}
	return refs
}

// excerpt returns the first n runes of s.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
