package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err == nil {
		t.Fatal("expected error for a missing --config path")
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: openai
  name: gpt-4o-mini
  max_tokens: 2048
  temperature: 0.3
embedding:
  provider: ollama
  model: nomic-embed-text
index:
  backend: qdrant
  chunk_size: 1200
  chunk_overlap: 100
  top_k: 6
  distance: dot
qdrant:
  host: qdrant.internal
  port: 6334
  collection_prefix: docs
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":           "openai",
		"MODEL_NAME":               "gpt-4o-mini",
		"MODEL_MAX_TOKENS":         "2048",
		"MODEL_TEMPERATURE":        "0.3",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"INDEX_BACKEND":            "qdrant",
		"CHUNK_SIZE":               "1200",
		"CHUNK_OVERLAP":            "100",
		"RETRIEVAL_TOP_K":          "6",
		"RETRIEVAL_DISTANCE":       "dot",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_COLLECTION_PREFIX": "docs",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}
	// t.Setenv registers cleanup; Unsetenv then leaves the key absent for Load.
	for k := range checks {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
index:
  chunk_size: 900
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MODEL_PROVIDER", "groq")
	t.Setenv("CHUNK_SIZE", "5000")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "groq" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "groq", got)
	}
	if got := os.Getenv("CHUNK_SIZE"); got != "5000" {
		t.Errorf("CHUNK_SIZE: expected env override %q, got %q", "5000", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvPathUsedWhenNoFlag(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pdfchat.yaml")
	if err := os.WriteFile(cfgPath, []byte("logging:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PDFCHAT_CONFIG", cfgPath)
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("LOG_LEVEL"); got != "warn" {
		t.Errorf("LOG_LEVEL: got %q, want %q", got, "warn")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	for _, k := range []string{
		"MODEL_PROVIDER", "MODEL_NAME", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"EMBEDDING_PROVIDER", "INDEX_BACKEND", "CHUNK_SIZE", "CHUNK_OVERLAP",
		"RETRIEVAL_TOP_K", "RETRIEVAL_DISTANCE", "PDFCHAT_HISTORY_DB", "PROMPT_ANSWER",
		"PDFCHAT_MAX_UPLOAD_MB", "EMBED_BATCH_SIZE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	if s.Model.Provider != "groq" {
		t.Errorf("Model.Provider = %q, want groq", s.Model.Provider)
	}
	if s.Embedding.Provider != "huggingface" {
		t.Errorf("Embedding.Provider = %q, want huggingface", s.Embedding.Provider)
	}
	if s.Index.ChunkSize != 5000 || s.Index.ChunkOverlap != 500 {
		t.Errorf("chunking = %d/%d, want 5000/500", s.Index.ChunkSize, s.Index.ChunkOverlap)
	}
	if s.Index.TopK != 4 || s.Index.Distance != "cosine" {
		t.Errorf("retrieval = %d/%s, want 4/cosine", s.Index.TopK, s.Index.Distance)
	}
	if s.Index.Backend != "chromem" {
		t.Errorf("Index.Backend = %q, want chromem", s.Index.Backend)
	}
	if s.History.DBPath != ":memory:" {
		t.Errorf("History.DBPath = %q, want :memory:", s.History.DBPath)
	}
	if s.Model.Temperature != 0.2 {
		t.Errorf("Model.Temperature = %v, want 0.2", s.Model.Temperature)
	}
}

func TestLoadSettings_OverlapMustBeSmallerThanSize(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "500")

	_, err := LoadSettings()
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	valid := func() Settings {
		return Settings{
			Index: IndexSettings{
				Backend: "chromem", ChunkSize: 100, ChunkOverlap: 10, TopK: 4,
				Distance: "cosine", EmbedBatchSize: 8,
			},
			Server: ServerSettings{MaxUploadMB: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid", func(*Settings) {}, false},
		{"zero overlap", func(s *Settings) { s.Index.ChunkOverlap = 0 }, false},
		{"negative overlap", func(s *Settings) { s.Index.ChunkOverlap = -1 }, true},
		{"overlap equals size", func(s *Settings) { s.Index.ChunkOverlap = 100 }, true},
		{"zero chunk size", func(s *Settings) { s.Index.ChunkSize = 0 }, true},
		{"zero top k", func(s *Settings) { s.Index.TopK = 0 }, true},
		{"unknown backend", func(s *Settings) { s.Index.Backend = "faiss" }, true},
		{"unknown distance", func(s *Settings) { s.Index.Distance = "hamming" }, true},
		{"dot on chromem", func(s *Settings) { s.Index.Distance = "dot" }, true},
		{"dot on qdrant", func(s *Settings) {
			s.Index.Backend = "qdrant"
			s.Index.Distance = "dot"
		}, false},
		{"answer prompt without context", func(s *Settings) { s.Prompts.Answer = "Answer briefly." }, true},
		{"answer prompt with context", func(s *Settings) { s.Prompts.Answer = "Use {context}." }, false},
		{"zero upload cap", func(s *Settings) { s.Server.MaxUploadMB = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid()
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("error does not wrap ErrInvalidSettings: %v", err)
			}
		})
	}
}
