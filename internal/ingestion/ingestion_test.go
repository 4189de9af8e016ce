package ingestion

import (
	"context"
	"errors"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/54b3r/pdfchat-go/internal/errkind"
	"github.com/54b3r/pdfchat-go/internal/ingestion/ingestiontest"
	"github.com/54b3r/pdfchat-go/internal/rag"
)

// bagEmbedder hashes words into a small dense vector so that texts sharing
// words land close together.
type bagEmbedder struct {
	calls   int
	batches []int
	err     error
}

func (b *bagEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	b.calls++
	b.batches = append(b.batches, len(texts))
	if b.err != nil {
		return nil, b.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 16)
		for j := range v {
			v[j] = 0.01
		}
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[h.Sum32()%16]++
		}
		out[i] = v
	}
	return out, nil
}

func TestLoadPDFs_PageCountAndOrder(t *testing.T) {
	t.Parallel()

	uploads := []Upload{
		{Name: "first.pdf", Data: ingestiontest.PDF("alpha page one", "alpha page two")},
		{Name: "second.pdf", Data: ingestiontest.PDF("beta page one", "beta page two", "beta page three")},
	}

	docs, err := LoadPDFs(context.Background(), uploads)
	if err != nil {
		t.Fatalf("LoadPDFs: %v", err)
	}
	if len(docs) != 5 {
		t.Fatalf("expected 5 page documents, got %d", len(docs))
	}

	want := []struct {
		source, page, total, word string
	}{
		{"first.pdf", "1", "2", "alpha"},
		{"first.pdf", "2", "2", "two"},
		{"second.pdf", "1", "3", "beta"},
		{"second.pdf", "2", "3", "two"},
		{"second.pdf", "3", "3", "three"},
	}
	for i, w := range want {
		d := docs[i]
		if d.Source != w.source || d.Metadata[rag.MetaPage] != w.page || d.Metadata[rag.MetaTotalPages] != w.total {
			t.Errorf("doc %d: got source=%s page=%s total=%s, want %s/%s/%s",
				i, d.Source, d.Metadata[rag.MetaPage], d.Metadata[rag.MetaTotalPages], w.source, w.page, w.total)
		}
		if !strings.Contains(d.Content, w.word) {
			t.Errorf("doc %d: content %q does not contain %q", i, d.Content, w.word)
		}
	}
}

func TestLoadPDFs_BlankPageIsKept(t *testing.T) {
	t.Parallel()

	docs, err := LoadPDFs(context.Background(), []Upload{{Name: "b.pdf", Data: ingestiontest.PDF("text", "")}})
	if err != nil {
		t.Fatalf("LoadPDFs: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(docs))
	}
	if docs[1].Content != "" {
		t.Errorf("blank page content = %q", docs[1].Content)
	}
}

func TestLoadPDFs_Empty(t *testing.T) {
	t.Parallel()

	docs, err := LoadPDFs(context.Background(), nil)
	if err != nil || len(docs) != 0 {
		t.Fatalf("LoadPDFs(nil) = %v, %v; want empty, nil", docs, err)
	}
}

func TestLoadPDFs_ParseErrorNamesFile(t *testing.T) {
	t.Parallel()

	uploads := []Upload{
		{Name: "good.pdf", Data: ingestiontest.PDF("fine")},
		{Name: "broken.pdf", Data: []byte("this is not a pdf")},
	}
	_, err := LoadPDFs(context.Background(), uploads)
	if !errkind.Is(err, errkind.Parse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken.pdf") {
		t.Errorf("error %q does not name the file", err.Error())
	}
}

func TestLoadPDFs_TempFilesRemoved(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)

	_, err := LoadPDFs(context.Background(), []Upload{{Name: "a.pdf", Data: ingestiontest.PDF("x")}})
	if err != nil {
		t.Fatalf("LoadPDFs: %v", err)
	}
	left, _ := filepath.Glob(filepath.Join(dir, "pdfchat-*"))
	if len(left) != 0 {
		t.Errorf("temp files left behind: %v", left)
	}
}

func TestLoadPDFs_DuplicateNames(t *testing.T) {
	t.Parallel()

	docs, err := LoadPDFs(context.Background(), []Upload{
		{Name: "same.pdf", Data: ingestiontest.PDF("one")},
		{Name: "C:\\Users\\me\\same.pdf", Data: ingestiontest.PDF("two")},
	})
	if err != nil {
		t.Fatalf("LoadPDFs: %v", err)
	}
	if docs[0].Source != "same.pdf" || docs[1].Source != "same.pdf (2)" {
		t.Errorf("sources = %q, %q", docs[0].Source, docs[1].Source)
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		pos  int
		want string
	}{
		{"report.pdf", 1, "report.pdf"},
		{"/tmp/uploads/report.pdf", 1, "report.pdf"},
		{`C:\docs\report.pdf`, 1, "report.pdf"},
		{"", 3, "document-3.pdf"},
		{"/", 2, "document-2.pdf"},
	}
	for _, tt := range tests {
		if got := displayName(tt.in, tt.pos); got != tt.want {
			t.Errorf("displayName(%q, %d) = %q, want %q", tt.in, tt.pos, got, tt.want)
		}
	}
}

func TestSplitter_ChunksBoundedBySize(t *testing.T) {
	t.Parallel()

	s, err := NewSplitter(120, 20)
	if err != nil {
		t.Fatal(err)
	}
	para := strings.Repeat("lorem ipsum dolor sit amet ", 12)
	text := para + "\n\n" + para + "\n" + strings.Repeat("x", 400)

	chunks, err := s.SplitDocuments([]rag.Document{{
		Content: text, Source: "a.pdf", Metadata: pageMetadata("a.pdf", 4, 9),
	}})
	if err != nil {
		t.Fatalf("SplitDocuments: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Content); n > 120 {
			t.Errorf("chunk %d has %d characters, limit 120", i, n)
		}
		if c.Metadata[rag.MetaPage] != "4" || c.Metadata[rag.MetaTotalPages] != "9" || c.Source != "a.pdf" {
			t.Errorf("chunk %d lost page metadata: %+v", i, c.Metadata)
		}
		if c.Metadata[rag.MetaChunkIndex] == "" || c.ID == "" {
			t.Errorf("chunk %d missing index or id", i)
		}
	}
}

func TestSplitter_SkipsBlankPages(t *testing.T) {
	t.Parallel()

	s, err := NewSplitter(100, 10)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := s.SplitDocuments([]rag.Document{
		{Content: "   ", Source: "a.pdf", Metadata: pageMetadata("a.pdf", 1, 2)},
		{Content: "short page", Source: "a.pdf", Metadata: pageMetadata("a.pdf", 2, 2)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Metadata[rag.MetaPage] != "2" {
		t.Errorf("unexpected chunks: %+v", chunks)
	}
}

func TestNewSplitter_RejectsBadOverlap(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct{ size, overlap int }{{100, 100}, {100, 150}, {100, -1}, {0, 0}} {
		if _, err := NewSplitter(tt.size, tt.overlap); err == nil {
			t.Errorf("NewSplitter(%d, %d): expected error", tt.size, tt.overlap)
		}
	}
}

func newTestPipeline(t *testing.T, emb rag.Embedder, cfg Config) *Pipeline {
	t.Helper()
	p, err := NewPipeline(emb, rag.NewChromemFactory(), cfg)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestPipeline_BuildFromPDFs(t *testing.T) {
	t.Parallel()

	emb := &bagEmbedder{}
	p := newTestPipeline(t, emb, Config{ChunkSize: 200, ChunkOverlap: 20, EmbedBatchSize: 2})

	idx, err := p.BuildFromPDFs(context.Background(), []Upload{
		{Name: "zoo.pdf", Data: ingestiontest.PDF("giraffes have long necks", "penguins cannot fly", "owls hunt at night")},
	})
	if err != nil {
		t.Fatalf("BuildFromPDFs: %v", err)
	}
	defer idx.Close()

	if idx.Pages != 3 || idx.Chunks != 3 {
		t.Errorf("pages/chunks = %d/%d, want 3/3", idx.Pages, idx.Chunks)
	}
	if len(idx.Files) != 1 || idx.Files[0] != "zoo.pdf" {
		t.Errorf("files = %v", idx.Files)
	}
	// 3 chunks in batches of 2.
	if len(emb.batches) != 2 || emb.batches[0] != 2 || emb.batches[1] != 1 {
		t.Errorf("embed batches = %v, want [2 1]", emb.batches)
	}

	got, err := idx.Retriever().Retrieve(context.Background(), "penguins fly", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 || !strings.Contains(got[0].Content, "penguins") {
		t.Errorf("retrieved %+v", got)
	}
}

func TestPipeline_ReindexDropsOldChunks(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &bagEmbedder{}, Config{ChunkSize: 200, ChunkOverlap: 0})

	old, err := p.BuildFromPDFs(context.Background(), []Upload{{Name: "old.pdf", Data: ingestiontest.PDF("volcanoes erupt lava")}})
	if err != nil {
		t.Fatal(err)
	}
	if err := old.Close(); err != nil {
		t.Fatal(err)
	}

	fresh, err := p.BuildFromPDFs(context.Background(), []Upload{{Name: "new.pdf", Data: ingestiontest.PDF("glaciers carve valleys")}})
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Close()

	got, err := fresh.Retriever().Retrieve(context.Background(), "volcanoes erupt lava", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range got {
		if d.Source == "old.pdf" {
			t.Errorf("new index returned chunk from previous upload: %+v", d)
		}
	}
}

func TestPipeline_NoText(t *testing.T) {
	t.Parallel()

	emb := &bagEmbedder{}
	p := newTestPipeline(t, emb, Config{})

	_, err := p.BuildFromPDFs(context.Background(), []Upload{{Name: "scan.pdf", Data: ingestiontest.PDF("")}})
	if !errkind.Is(err, errkind.Parse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for an empty document", emb.calls)
	}
}

func TestPipeline_EmbedErrorKeepsKind(t *testing.T) {
	t.Parallel()

	emb := &bagEmbedder{err: errkind.Wrap(errkind.Credential, "hf embedder", errors.New("HTTP 401"))}
	p := newTestPipeline(t, emb, Config{})

	_, err := p.BuildFromPDFs(context.Background(), []Upload{{Name: "a.pdf", Data: ingestiontest.PDF("words")}})
	if !errkind.Is(err, errkind.Credential) {
		t.Fatalf("expected credential error, got %v", err)
	}
}

func TestNewPipeline_InvalidChunking(t *testing.T) {
	t.Parallel()

	_, err := NewPipeline(&bagEmbedder{}, rag.NewChromemFactory(), Config{ChunkSize: 10, ChunkOverlap: 10})
	if !errkind.Is(err, errkind.Config) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestPipeline_StoreSizedFromEmbeddings(t *testing.T) {
	t.Parallel()

	var gotDims []int
	factory := func(ctx context.Context, dims int) (rag.VectorStore, error) {
		gotDims = append(gotDims, dims)
		return rag.NewChromemFactory()(ctx, dims)
	}
	p, err := NewPipeline(&bagEmbedder{}, factory, Config{ChunkSize: 200})
	if err != nil {
		t.Fatal(err)
	}

	idx, err := p.BuildFromPDFs(context.Background(), []Upload{{Name: "a.pdf", Data: ingestiontest.PDF("words on a page")}})
	if err != nil {
		t.Fatalf("BuildFromPDFs: %v", err)
	}
	defer idx.Close()

	// bagEmbedder produces 16-dimensional vectors.
	if len(gotDims) != 1 || gotDims[0] != 16 {
		t.Errorf("factory dimensions = %v, want [16]", gotDims)
	}
}

func TestVectorSize(t *testing.T) {
	t.Parallel()

	if n, err := vectorSize([][]float32{{1, 2, 3}, {4, 5, 6}}); err != nil || n != 3 {
		t.Errorf("vectorSize = %d, %v; want 3", n, err)
	}
	for name, vecs := range map[string][][]float32{
		"none":  nil,
		"empty": {{}},
		"mixed": {{1, 2}, {1, 2, 3}},
	} {
		if _, err := vectorSize(vecs); !errkind.Is(err, errkind.ServiceUnavailable) {
			t.Errorf("%s: expected service_unavailable error, got %v", name, err)
		}
	}
}
