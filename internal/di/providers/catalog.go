package providers

import (
	"github.com/samber/do/v2"

	"github.com/pixvault/pixvault-server/internal/catalog"
	"github.com/pixvault/pixvault-server/internal/config"
	"github.com/pixvault/pixvault-server/internal/logger"
)

// ProvideCatalogClient provides the remote catalog client.
func ProvideCatalogClient(i do.Injector) (*catalog.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := catalog.New(catalog.Config{
		BaseURL:       cfg.Catalog.BaseURL,
		AuthURL:       cfg.Catalog.AuthURL,
		RefreshToken:  cfg.Catalog.RefreshToken,
		RestrictModes: cfg.Catalog.RestrictModes(),
		MaxPages:      cfg.Catalog.MaxPages,
	}, log.Logger)

	log.Info("Catalog client ready",
		"restrict", cfg.Catalog.Restrict,
		"max_pages", cfg.Catalog.MaxPages,
	)

	return client, nil
}
