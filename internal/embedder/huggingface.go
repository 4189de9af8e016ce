package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/pdfchat-go/internal/errkind"
)

// defaultHFEndpoint is the Hugging Face Inference router. The model name is
// appended as a path, followed by the feature-extraction pipeline suffix.
const defaultHFEndpoint = "https://router.huggingface.co/hf-inference/models"

// HuggingFaceEmbedder implements rag.Embedder against the Hugging Face
// Inference feature-extraction pipeline. It is safe for concurrent use.
type HuggingFaceEmbedder struct {
	url    string
	token  string
	client *http.Client
}

// HuggingFaceConfig holds the settings for constructing a HuggingFaceEmbedder.
type HuggingFaceConfig struct {
	// Endpoint is the inference base URL (default: the public router).
	Endpoint string
	// Model is the repository id, e.g. "sentence-transformers/all-MiniLM-L6-v2".
	Model string
	// Token is the Hugging Face access token (HF_TOKEN).
	Token string
}

// NewHuggingFaceEmbedder constructs a HuggingFaceEmbedder from the given config.
func NewHuggingFaceEmbedder(cfg *HuggingFaceConfig) *HuggingFaceEmbedder {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultHFEndpoint
	}
	return &HuggingFaceEmbedder{
		url:    endpoint + "/" + cfg.Model + "/pipeline/feature-extraction",
		token:  cfg.Token,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type hfEmbedRequest struct {
	Inputs  []string         `json:"inputs"`
	Options hfRequestOptions `json:"options"`
}

type hfRequestOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *HuggingFaceEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(hfEmbedRequest{
		Inputs:  texts,
		Options: hfRequestOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("hf embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("hf embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, transportError("hf embedder", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("hf embedder", resp, hfErrorMessage)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errkind.Wrap(errkind.ServiceUnavailable, "hf embedder", fmt.Errorf("decode response: %w", err))
	}

	vecs, err := decodeFeatures(raw)
	if err != nil {
		return nil, errkind.Wrap(errkind.ServiceUnavailable, "hf embedder", err)
	}
	if len(vecs) != len(texts) {
		return nil, errkind.New(errkind.ServiceUnavailable, "hf embedder",
			"expected %d embeddings, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

// decodeFeatures accepts both pooled sentence embeddings ([][]float32) and
// token-level features ([][][]float32), mean-pooling the latter.
func decodeFeatures(raw json.RawMessage) ([][]float32, error) {
	var pooled [][]float32
	if err := json.Unmarshal(raw, &pooled); err == nil {
		return pooled, nil
	}

	var tokens [][][]float32
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("unexpected feature-extraction payload: %w", err)
	}
	out := make([][]float32, len(tokens))
	for i, seq := range tokens {
		out[i] = meanPool(seq)
	}
	return out, nil
}

func meanPool(seq [][]float32) []float32 {
	if len(seq) == 0 {
		return nil
	}
	sum := make([]float32, len(seq[0]))
	for _, tok := range seq {
		for j := range sum {
			if j < len(tok) {
				sum[j] += tok[j]
			}
		}
	}
	n := float32(len(seq))
	for j := range sum {
		sum[j] /= n
	}
	return sum
}

func hfErrorMessage(body []byte) string {
	var e struct {
		Error any `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error == nil {
		return ""
	}
	return fmt.Sprint(e.Error)
}
