package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/wrolpi/archivaid/internal/appconfig"
	"github.com/wrolpi/archivaid/internal/collection"
	"github.com/wrolpi/archivaid/internal/configmirror"
	"github.com/wrolpi/archivaid/internal/downloadmgr"
	"github.com/wrolpi/archivaid/internal/events"
	"github.com/wrolpi/archivaid/internal/modeler"
	"github.com/wrolpi/archivaid/internal/refresh"
	"github.com/wrolpi/archivaid/internal/store"
	"github.com/wrolpi/archivaid/internal/switchbus"
)

// dbFileName is the SQLite file created under the media root's config
// directory.
const dbFileName = "archivaid.db"

// configDirName is the subdirectory under the media root holding
// archivaid.db and the YAML config mirror files.
const configDirName = "config"

// App bundles every long-lived dependency a command needs: the open
// database, every aggregate store, and the services built on top of them
// (refresh pipeline, download manager, collection lifecycle, config
// mirror, switch bus, event feed). Built once per process in
// PersistentPreRunE, bundling this local-daemon domain's service graph
// instead of an OAuth-backed remote client.
type App struct {
	Config appconfig.Config
	DB     *store.DB
	Logger *slog.Logger

	Tags        *store.TagStore
	FileGroups  *store.FileGroupStore
	Archives    *store.ArchiveStore
	Videos      *store.VideoStore
	Channels    *store.ChannelStore
	Collections *store.CollectionStore
	Downloads   *store.DownloadStore
	Inventories *store.InventoryStore

	Modelers      *modeler.Registry
	Switches      *switchbus.Bus
	Events        *events.Feed
	Pipeline      *refresh.Pipeline
	Downloader    *downloadmgr.Manager
	CollectionSvc *collection.Service
	ConfigMirror  *configmirror.Driver
}

// configDir returns the media root's config subdirectory.
func configDir(cfg appconfig.Config) string {
	return filepath.Join(cfg.Media.Root, configDirName)
}

// buildApp opens the database, runs migrations, and wires every store and
// service together. Called once from PersistentPreRunE for every command
// except ones annotated skipConfigAnnotation.
func buildApp(ctx context.Context, cfg appconfig.Config, logger *slog.Logger) (*App, error) {
	dbPath := filepath.Join(configDir(cfg), dbFileName)

	db, err := store.Open(ctx, dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return wireApp(cfg, db, logger)
}

// wireApp wires every store and service on top of an already-open database.
// Split from buildApp so tests can supply an in-memory database via
// store.OpenMemory instead of a file-backed one.
func wireApp(cfg appconfig.Config, db *store.DB, logger *slog.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		DB:     db,
		Logger: logger,

		Tags:        store.NewTagStore(db),
		FileGroups:  store.NewFileGroupStore(db),
		Archives:    store.NewArchiveStore(db),
		Videos:      store.NewVideoStore(db),
		Channels:    store.NewChannelStore(db),
		Collections: store.NewCollectionStore(db),
		Downloads:   store.NewDownloadStore(db),
		Inventories: store.NewInventoryStore(db),

		Modelers: modeler.NewRegistry(),
		Switches: switchbus.New(logger),
		Events:   events.NewFeed(),
	}

	modeler.RegisterArchiveModeler(a.Modelers, modeler.ArchiveModelerDeps{
		Archives:    a.Archives,
		Collections: a.Collections,
		MediaRoot:   cfg.Media.Root,
	})
	modeler.RegisterVideoModeler(a.Modelers, modeler.VideoModelerDeps{Videos: a.Videos, Channels: a.Channels})

	a.Pipeline = refresh.New(a.FileGroups, a.Modelers, a.Events, logger)
	a.Pipeline.SetBatchSize(cfg.Workers.BatchSize)
	a.Pipeline.AddHook(refresh.PruneEmptyDomainCollections(a.Collections, a.FileGroups, configDir(cfg)))

	a.Downloader = downloadmgr.New(a.Downloads, downloadmgr.NewRegistry(), a.Events, logger, cfg.Workers.DownloadWorkers)

	bandwidth, err := downloadmgr.NewBandwidthLimiter(cfg.Workers.BandwidthLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("configuring bandwidth limiter: %w", err)
	}

	a.Downloader.SetBandwidthLimiter(bandwidth)

	a.CollectionSvc = collection.New(a.Collections, a.Channels, a.Tags, a.FileGroups, a.Downloads, a.Switches, logger, cfg.Media.Root)

	a.ConfigMirror = configmirror.NewDriver(configDir(cfg), db, logger)

	a.registerConfigSwitchHandlers()

	return a, nil
}

// registerConfigSwitchHandlers wires the two config-save switches (a
// collection mutation activates save_domains_config or
// save_channels_config) to the relevant configmirror Dump calls, then
// starts the switch bus worker.
func (a *App) registerConfigSwitchHandlers() {
	a.Switches.RegisterHandler(collection.SwitchSaveDomainsConfig, func(ctx context.Context, _ any) error {
		return configmirror.NewDomainsConfig(configDir(a.Config), a.DB).Dump(ctx)
	})

	a.Switches.RegisterHandler(collection.SwitchSaveChannelsConfig, func(ctx context.Context, _ any) error {
		return configmirror.NewChannelsConfig(configDir(a.Config), a.DB).Dump(ctx)
	})
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.DB.Close()
}
