// Package handlers contains the HTTP handlers for the public completion
// endpoint and the channel administration API.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"conduit-hq/conduit/pkg/proxy"
	"conduit-hq/conduit/pkg/proxy/middleware"
	"conduit-hq/conduit/pkg/relay"
)

// ChatHandler serves POST /v1/chat/completions, returning either a
// single JSON response or a server-sent event stream.
type ChatHandler struct {
	dispatcher *proxy.Dispatcher

	// requestTimeout bounds non-streaming requests end to end. Streams
	// are bounded per attempt by the upstream timeout instead, since a
	// long generation is not an error.
	requestTimeout time.Duration
}

// NewChatHandler creates the completion handler. A zero requestTimeout
// disables the non-streaming deadline.
func NewChatHandler(d *proxy.Dispatcher, requestTimeout time.Duration) *ChatHandler {
	return &ChatHandler{dispatcher: d, requestTimeout: requestTimeout}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	t := middleware.GetTenant(ctx)
	if t == nil {
		proxy.WriteError(w, relay.NewError(relay.KindUnknown, "", "no tenant in request context"))
		return
	}

	req, err := proxy.ParseCompletionRequest(r)
	if err != nil {
		proxy.WriteError(w, err)
		return
	}
	req.Metadata = map[string]string{
		"request_id": requestID,
		"tenant_id":  t.ID,
	}

	slog.InfoContext(ctx, "processing completion request",
		"request_id", requestID,
		"tenant", t.ID,
		"model", req.Model,
		"messages", len(req.Messages),
		"stream", req.Stream,
	)

	if req.Stream {
		h.serveStream(w, r, t.ID, req)
		return
	}

	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	resp, err := h.dispatcher.Dispatch(ctx, t.ID, req)
	if err != nil {
		slog.ErrorContext(ctx, "completion request failed",
			"request_id", requestID,
			"model", req.Model,
			"error", err,
		)
		proxy.WriteError(w, err)
		return
	}

	proxy.WriteJSON(w, http.StatusOK, proxy.FormatResponse(resp))
}

func (h *ChatHandler) serveStream(w http.ResponseWriter, r *http.Request, tenantID string, req *relay.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	chunks, err := h.dispatcher.DispatchStream(ctx, tenantID, req)
	if err != nil {
		// Nothing has been written yet; a plain JSON error is still
		// possible and friendlier to SDKs than an SSE error event.
		slog.ErrorContext(ctx, "stream dispatch failed",
			"request_id", requestID,
			"model", req.Model,
			"error", err,
		)
		proxy.WriteError(w, err)
		return
	}

	proxy.SetSSEHeaders(w)
	flushHeaders(w)

	responseID := fmt.Sprintf("chatcmpl-%s", requestID)
	for chunk := range chunks {
		if chunk.Err != nil {
			slog.ErrorContext(ctx, "error in stream",
				"request_id", requestID,
				"error", chunk.Err,
			)
			_, body := proxy.MapError(chunk.Err)
			_ = proxy.WriteSSEError(w, body)
			return
		}

		if err := proxy.WriteSSEChunk(w, proxy.FormatChunk(chunk, req.Model, responseID)); err != nil {
			// Client went away; the dispatcher sees the context cancel.
			slog.DebugContext(ctx, "client disconnected mid-stream",
				"request_id", requestID,
			)
			return
		}
	}

	_ = proxy.WriteSSEDone(w)
}

func flushHeaders(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
