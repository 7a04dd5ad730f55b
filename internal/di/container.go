// Package di provides dependency injection configuration for the PixVault server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/pixvault/pixvault-server/internal/catalog"
	"github.com/pixvault/pixvault-server/internal/config"
	"github.com/pixvault/pixvault-server/internal/di/providers"
	"github.com/pixvault/pixvault-server/internal/downloader"
	"github.com/pixvault/pixvault-server/internal/logger"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Registry
	do.Provide(injector, providers.ProvideStore)

	// Catalog and sync pipeline
	do.Provide(injector, providers.ProvideCatalogClient)
	do.Provide(injector, providers.ProvideDownloader)
	do.Provide(injector, providers.ProvideSyncEngine)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is
// running. This triggers lazy initialization of the whole pipeline.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*catalog.Client](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*downloader.Manager](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.EngineHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
