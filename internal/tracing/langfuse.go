// Package tracing wires opt-in Langfuse tracing into every eino component.
package tracing

import (
	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/pdfchat-go/internal/config"
)

// Setup registers a global Langfuse callback handler when both Langfuse keys
// are set. The returned flush must be called before process exit so buffered
// traces are sent; it is a no-op when tracing is disabled.
func Setup(s config.TracingSettings) (flush func(), enabled bool) {
	if !s.Enabled() {
		return func() {}, false
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      s.Host,
		PublicKey: s.PublicKey,
		SecretKey: s.SecretKey,
	})
	callbacks.AppendGlobalHandlers(handler)

	return flusher, true
}
