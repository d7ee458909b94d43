package gateway

import (
	"context"
	"log/slog"

	"github.com/kookworks/kgate/internal/config"
	"github.com/kookworks/kgate/internal/errors"
)

// Receiver is one way of taking events off the platform. It serves
// until the context is cancelled.
type Receiver interface {
	Run(ctx context.Context) error
}

// Deps carries everything a receiver needs to start.
type Deps struct {
	Config  *config.Config
	Handler EventHandler
	Logger  *slog.Logger
}

// Factory builds a receiver from its dependencies.
type Factory func(Deps) (Receiver, error)

// Factories maps receiver modes to constructors. Callers may add
// their own modes to the returned map before calling Build.
func Factories() map[string]Factory {
	return map[string]Factory{
		config.ModeWebSocket: newWebSocketReceiver,
		config.ModeWebhook:   newWebhookReceiver,
	}
}

// Build selects a receiver by mode from the factory map.
func Build(mode string, deps Deps, factories map[string]Factory) (Receiver, error) {
	f, ok := factories[mode]
	if !ok {
		return nil, errors.Newf(errors.CategoryConfig, "no receiver registered for mode %q", mode)
	}
	return f(deps)
}

func newWebSocketReceiver(deps Deps) (Receiver, error) {
	if deps.Config == nil {
		return nil, errors.Newf(errors.CategoryConfig, "websocket receiver needs a config")
	}
	cfg := deps.Config
	return NewSession(SessionConfig{
		URL:               NewHTTPGatewayURL(cfg.Token, "", nil),
		Transport:         &WebSocketTransport{},
		Handler:           deps.Handler,
		Compress:          cfg.Compress,
		EncryptKey:        cfg.EncryptKey,
		HelloTimeout:      cfg.Gateway.HelloTimeout.Std(),
		HeartbeatInterval: cfg.Gateway.HeartbeatInterval.Std(),
		HeartbeatJitter:   cfg.Gateway.HeartbeatJitter.Std(),
		HeartbeatTimeout:  cfg.Gateway.HeartbeatTimeout.Std(),
		ReconnectBase:     cfg.Gateway.ReconnectBase.Std(),
		MaxReconnects:     cfg.Gateway.MaxReconnects,
		Logger:            deps.Logger,
	}), nil
}
