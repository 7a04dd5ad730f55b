package providers

import (
	"context"
	"net"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/pixvault/pixvault-server/internal/api"
	"github.com/pixvault/pixvault-server/internal/config"
	"github.com/pixvault/pixvault-server/internal/logger"
)

// HTTPServerHandle wraps http.Server with Shutdownable. The server is
// nil when the API is disabled by configuration.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	if h.Server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP API server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Server.Enabled {
		log.Info("HTTP API disabled by configuration")
		return &HTTPServerHandle{}, nil
	}

	storeHandle := do.MustInvoke[*StoreHandle](i)
	engineHandle := do.MustInvoke[*EngineHandle](i)

	handler := api.NewServer(storeHandle.Store, engineHandle.Engine, log.Logger)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
