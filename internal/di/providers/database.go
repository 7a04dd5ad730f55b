package providers

import (
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/pixvault/pixvault-server/internal/config"
	"github.com/pixvault/pixvault-server/internal/logger"
	"github.com/pixvault/pixvault-server/internal/store/sqlite"
)

// StoreHandle wraps the registry store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the download registry.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Storage.DownloadPath, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.Storage.DatabasePath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Registry initialized", "path", cfg.Storage.DatabasePath)

	return &StoreHandle{Store: db}, nil
}
