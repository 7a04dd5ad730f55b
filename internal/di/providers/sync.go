package providers

import (
	"github.com/samber/do/v2"

	"github.com/pixvault/pixvault-server/internal/catalog"
	"github.com/pixvault/pixvault-server/internal/config"
	"github.com/pixvault/pixvault-server/internal/downloader"
	"github.com/pixvault/pixvault-server/internal/logger"
	"github.com/pixvault/pixvault-server/internal/syncer"
)

// ProvideDownloader provides the download fan-out manager.
func ProvideDownloader(i do.Injector) (*downloader.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*catalog.Client](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	return downloader.New(client, storeHandle.Store, cfg.Storage.DownloadPath, cfg.Sync.Concurrency, log.Logger), nil
}

// EngineHandle wraps the sync engine with its lifecycle.
type EngineHandle struct {
	*syncer.Engine
}

// Shutdown implements do.Shutdownable.
func (h *EngineHandle) Shutdown() error {
	h.Engine.Stop()
	return nil
}

// ProvideSyncEngine provides the started sync engine.
func ProvideSyncEngine(i do.Injector) (*EngineHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*catalog.Client](i)
	manager := do.MustInvoke[*downloader.Manager](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	engine := syncer.New(client, manager, storeHandle.Store, syncer.Config{
		Interval:  cfg.Sync.Interval,
		AutoStart: cfg.Sync.AutoStart,
		Expand:    catalog.Expand,
	}, log.Logger)
	engine.Start()

	log.Info("Sync engine started",
		"interval", cfg.Sync.Interval,
		"concurrency", cfg.Sync.Concurrency,
		"auto_start", cfg.Sync.AutoStart,
	)

	return &EngineHandle{Engine: engine}, nil
}
