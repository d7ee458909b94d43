package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kookworks/kgate/internal/errors"
	"github.com/kookworks/kgate/pkg/protocol"
	"github.com/kookworks/kgate/pkg/telemetry"
)

// maxWebhookBody bounds a single callback request.
const maxWebhookBody = 1 << 20

// WebhookReceiver takes events as HTTP callbacks instead of a
// websocket. The platform POSTs one envelope per request, optionally
// zlib-compressed, with the payload encrypted when a key is shared.
// Before delivering events the platform sends a challenge that must
// be echoed back.
type WebhookReceiver struct {
	addr        string
	verifyToken string
	inflater    *protocol.FrameReader
	decrypter   *protocol.FrameReader
	handler     EventHandler
	logger      *slog.Logger
	router      chi.Router
}

func newWebhookReceiver(deps Deps) (Receiver, error) {
	if deps.Config == nil {
		return nil, errors.Newf(errors.CategoryConfig, "webhook receiver needs a config")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &WebhookReceiver{
		addr:        cfg.Webhook.Addr,
		verifyToken: cfg.VerifyToken,
		handler:     deps.Handler,
		logger:      logger.With("component", "webhook"),
	}
	if cfg.Compress {
		w.inflater = protocol.NewFrameReader("", true)
	}
	if cfg.EncryptKey != "" {
		w.decrypter = protocol.NewFrameReader(cfg.EncryptKey, false)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post(cfg.Webhook.Path, w.handlePost)
	w.router = r
	return w, nil
}

// Handler exposes the router, mainly so callers can mount it on an
// existing server.
func (w *WebhookReceiver) Handler() http.Handler { return w.router }

// Run serves callbacks until the context is cancelled.
func (w *WebhookReceiver) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              w.addr,
		Handler:           w.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	w.logger.Info("webhook listening", "addr", w.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// webhookProbe is the slice of an event payload the receiver itself
// inspects before handing it on.
type webhookProbe struct {
	VerifyToken string `json:"verify_token"`
	ChannelType string `json:"channel_type"`
	Challenge   string `json:"challenge"`
}

func (w *WebhookReceiver) handlePost(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "read body", http.StatusBadRequest)
		return
	}

	if w.inflater != nil {
		if body, err = w.inflater.Unwrap(body); err != nil {
			telemetry.RecordDecodeError()
			w.logger.Warn("drop callback: inflate failed", "error", err)
			http.Error(rw, "bad body", http.StatusBadRequest)
			return
		}
	}

	// Encrypted callbacks wrap the envelope as {"encrypt": "<cipher>"}.
	var wrapper struct {
		Encrypt string `json:"encrypt"`
	}
	if json.Unmarshal(body, &wrapper) == nil && wrapper.Encrypt != "" {
		if w.decrypter == nil {
			w.logger.Warn("drop callback: encrypted body without a key")
			http.Error(rw, "unexpected encryption", http.StatusBadRequest)
			return
		}
		if body, err = w.decrypter.Unwrap([]byte(wrapper.Encrypt)); err != nil {
			telemetry.RecordDecodeError()
			w.logger.Warn("drop callback: decrypt failed", "error", err)
			http.Error(rw, "bad body", http.StatusBadRequest)
			return
		}
	}

	env, err := protocol.DecodeEnvelope(body)
	if err != nil {
		telemetry.RecordDecodeError()
		w.logger.Warn("drop callback: malformed envelope", "error", err)
		http.Error(rw, "bad envelope", http.StatusBadRequest)
		return
	}
	telemetry.RecordFrame(env.Op.String())

	if env.Op != protocol.OpEvent {
		rw.WriteHeader(http.StatusOK)
		return
	}

	var probe webhookProbe
	if err := json.Unmarshal(env.Payload, &probe); err != nil {
		http.Error(rw, "bad payload", http.StatusBadRequest)
		return
	}
	if w.verifyToken != "" && probe.VerifyToken != w.verifyToken {
		w.logger.Warn("drop callback: verify token mismatch")
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}

	if probe.Challenge != "" {
		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(map[string]string{"challenge": probe.Challenge})
		return
	}

	if w.handler != nil {
		w.handler(r.Context(), env.Payload)
	}
	rw.WriteHeader(http.StatusOK)
}

var _ Receiver = (*WebhookReceiver)(nil)
var _ Receiver = (*Session)(nil)
