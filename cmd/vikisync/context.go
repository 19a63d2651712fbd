package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"vikisync/internal/config"
	"vikisync/internal/logging"
	"vikisync/internal/matching"
	"vikisync/internal/matchstore"
	"vikisync/internal/notifications"
	"vikisync/internal/services/mdl"
	"vikisync/internal/services/trakt"
	"vikisync/internal/services/tvdb"
	"vikisync/internal/services/viki"
	"vikisync/internal/syncer"
	"vikisync/internal/watchstore"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) openMatchStore() (*matchstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return matchstore.Open(cfg)
}

func (c *commandContext) openWatchStore() (*watchstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return watchstore.Open(cfg)
}

func (c *commandContext) traktClient() (*trakt.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Trakt.ClientID) == "" {
		return nil, fmt.Errorf("trakt client_id is required; run `vikisync config init` and fill in [trakt]")
	}
	client, err := trakt.New(cfg.Trakt.ClientID, cfg.Trakt.BaseURL, trakt.WithAccessToken(cfg.Trakt.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("build trakt client: %w", err)
	}
	return client, nil
}

// buildEngine wires the matching engine with whichever lookup services the
// configuration enables. Trakt credentials are mandatory; TVDB and the
// alias site are optional tiers.
func (c *commandContext) buildEngine(matches *matchstore.Store, logger *slog.Logger) (*matching.Engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	traktClient, err := c.traktClient()
	if err != nil {
		return nil, err
	}
	opts := []matching.Option{matching.WithTrakt(traktClient)}

	if strings.TrimSpace(cfg.TVDB.APIKey) != "" {
		tvdbClient, err := tvdb.New(cfg.TVDB.APIKey, cfg.TVDB.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("build tvdb client: %w", err)
		}
		opts = append(opts, matching.WithTVDB(tvdbClient))
	}

	if cfg.MDL.Enabled {
		mdlClient, err := mdl.New(cfg.MDL.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("build alias client: %w", err)
		}
		opts = append(opts, matching.WithAliases(mdlClient))
	}

	return matching.NewEngine(matches, logger, opts...)
}

// buildSyncer assembles the full sync pipeline. It requires Viki session
// cookies and a Trakt access token on top of the matching stack.
func (c *commandContext) buildSyncer(watch *watchstore.Store, matches *matchstore.Store, logger *slog.Logger) (*syncer.Syncer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateVikiCredentials(); err != nil {
		return nil, err
	}

	vikiClient, err := viki.New(cfg.VikiCookies(), cfg.Viki.BaseURL, cfg.Viki.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("build viki client: %w", err)
	}

	engine, err := c.buildEngine(matches, logger)
	if err != nil {
		return nil, err
	}

	var history syncer.HistoryService
	if strings.TrimSpace(cfg.Trakt.AccessToken) != "" {
		traktClient, err := c.traktClient()
		if err != nil {
			return nil, err
		}
		history = traktClient
	}

	return syncer.New(cfg, watch, matches, engine, vikiClient, history, notifications.NewService(cfg), logger)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
