package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/shruggr/workshop/cache"
	"github.com/shruggr/workshop/cache/kv"
	"github.com/shruggr/workshop/cache/lru"
	"github.com/shruggr/workshop/cache/memory"
	"github.com/shruggr/workshop/kvstore/badger"
	"github.com/shruggr/workshop/localfiles"
	"github.com/shruggr/workshop/localfiles/sqlite"
	"github.com/shruggr/workshop/sdk"
	"github.com/shruggr/workshop/sdk/fake"
	"github.com/shruggr/workshop/sdk/webapi"
	"github.com/shruggr/workshop/transactions"
	"github.com/shruggr/workshop/workshop"
)

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(fs.Output(), `Usage: workshopctl [flags] <command> [args]

Commands:
  item <id>          fetch one item
  items <id>...      fetch several items in request order
  browse <page>      list the local user's published items
  whoami             show the signed-in user
  known <id>         show the cached record without querying
  link <id> <path>   associate an item with a local file
  unlink <id>        remove an item's local file association
  files              list local file associations
  game-dir           print the app install directory

Flags:
`)
		fs.PrintDefaults()
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the exit code so deferred cleanup happens before exiting
func run(args []string, stdout, stderr io.Writer) int {
	// Parse flags
	fs := flag.NewFlagSet("workshopctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	backend := fs.String("backend", "fake", "SDK backend: fake or webapi")
	storageType := fs.String("storage", "memory", "Item cache: memory, lru or badger")
	dataDir := fs.String("data-dir", "./data", "Data directory for BadgerDB and the local file index")
	cacheSize := fs.Int("cache-size", 4096, "Maximum cached items for the lru cache")
	apiKey := fs.String("api-key", os.Getenv("STEAM_API_KEY"), "Steam Web API key")
	steamID := fs.Uint64("steam-id", 0, "SteamID64 of the local user")
	appID := fs.Uint("app-id", uint(workshop.DefaultAppID), "App whose items browse lists")
	gameDir := fs.String("game-dir", "", "Install directory of the app, if installed")
	localDB := fs.Bool("local-files", false, "Attach local file paths from the SQLite index in data-dir")
	rateLimit := fs.Float64("rate", 4, "Web API requests per second")
	dedicatedPump := fs.Bool("dedicated-pump", false, "Drive SDK callbacks from a background goroutine")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	timeout := fs.Duration("timeout", 30*time.Second, "Give up on a command after this long")
	fs.Usage = usage(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	// Set up slog at the requested level
	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Initialize SDK backend
	var client sdk.Client
	var pumpSource sdk.Pump

	installed := map[sdk.AppID]string{}
	if *gameDir != "" {
		installed[sdk.AppID(*appID)] = *gameDir
	}

	switch *backend {
	case "fake":
		logger.Debug("Using fake SDK backend")
		f := demoCatalog(sdk.SteamID(*steamID), installed)
		client, pumpSource = f, f
	case "webapi":
		if *steamID == 0 {
			logger.Error("-steam-id is required for the webapi backend")
			return 2
		}
		logger.Debug("Using Steam Web API backend")
		w, err := webapi.New(&webapi.Config{
			APIKey:    *apiKey,
			SteamID:   sdk.SteamID(*steamID),
			Installed: installed,
			RateLimit: rate.Limit(*rateLimit),
			Logger:    logger,
		})
		if err != nil {
			logger.Error("Failed to create Web API client", "error", err)
			return 1
		}
		defer w.Close()
		client, pumpSource = w, w
	default:
		logger.Error("Unknown backend, use fake or webapi", "backend", *backend)
		return 2
	}

	// Initialize item cache based on type
	var itemCache cache.ItemCache

	switch *storageType {
	case "memory":
		itemCache = memory.New()
	case "lru":
		c, err := lru.New(*cacheSize)
		if err != nil {
			logger.Error("Failed to create LRU cache", "error", err)
			return 1
		}
		itemCache = c
	case "badger":
		logger.Debug("Using BadgerDB item cache", "dir", *dataDir)
		store, err := badger.New(&badger.Config{
			DataDir: filepath.Join(*dataDir, "items"),
			Logger:  logger,
		})
		if err != nil {
			logger.Error("Failed to initialize BadgerDB", "error", err)
			return 1
		}
		defer func() {
			if err := store.RunGC(0.5); err != nil {
				logger.Debug("Value log GC skipped", "error", err)
			}
			store.Close()
		}()

		c := kv.New(store, logger)
		n, err := c.Load(context.Background())
		if err != nil {
			logger.Error("Failed to load item cache", "error", err)
			return 1
		}
		logger.Debug("Item cache loaded", "entries", n)
		itemCache = c
	default:
		logger.Error("Unknown storage type, use memory, lru or badger", "storage", *storageType)
		return 2
	}

	var files localfiles.Store
	if *localDB || needsLocalFiles(fs.Arg(0)) {
		if err := os.MkdirAll(*dataDir, 0o755); err != nil {
			logger.Error("Failed to create data directory", "error", err)
			return 1
		}
		s, err := sqlite.New(&sqlite.Config{DBPath: filepath.Join(*dataDir, "localfiles.db")})
		if err != nil {
			logger.Error("Failed to open local file index", "error", err)
			return 1
		}
		defer s.Close()
		files = s
	}

	session, err := workshop.New(client, pumpSource, itemCache, &workshop.Config{
		AppID:         sdk.AppID(*appID),
		DedicatedPump: *dedicatedPump,
		LocalFiles:    files,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("Failed to create session", "error", err)
		return 1
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// SIGINT cancels the running command; the session stays usable
	registry := transactions.NewRegistry()
	tx := registry.Begin(ctx)
	defer registry.Finish(tx.ID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Cancelling", "transaction", tx.ID)
			registry.Cancel(tx.ID)
		case <-tx.Context().Done():
		}
	}()

	cmd := &command{
		session: session,
		files:   files,
		out:     stdout,
		logger:  logger,
	}
	if err := cmd.run(tx.Context(), fs.Arg(0), fs.Args()[1:]); err != nil {
		if tx.Cancelled() {
			fmt.Fprintln(stderr, "cancelled")
			return 130
		}
		fmt.Fprintf(stderr, "workshopctl: %v\n", err)
		return 1
	}
	return 0
}

// demoCatalog seeds the fake backend so the CLI is usable without Steam
func demoCatalog(owner sdk.SteamID, installed map[sdk.AppID]string) *fake.Client {
	opts := []fake.Option{fake.WithLatency(1)}
	if owner != 0 {
		opts = append(opts, fake.WithUser(owner, "fake user"))
	}
	for app, dir := range installed {
		opts = append(opts, fake.WithInstalledApp(app, dir))
	}
	f := fake.New(opts...)
	if owner == 0 {
		owner = f.User().SteamID()
	}

	now := uint32(time.Now().Unix())
	titles := []string{"Wiremod", "Advanced Duplicator", "PAC3", "Prop Hunt", "Old Duplicate"}
	for i, title := range titles {
		tags := []string{"Addon", "Tool"}
		if i == len(titles)-1 {
			tags = append(tags, workshop.DefaultExcludeTag)
		}
		id := sdk.PublishedFileID(100000 + i)
		f.AddItem(fake.Entry{
			Result: sdk.QueryResult{
				PublishedFileID: id,
				Title:           title,
				Description:     title + " for Garry's Mod",
				Owner:           owner,
				TimeCreated:     now - uint32(86400*(30+i)),
				TimeUpdated:     now - uint32(3600*(i+1)),
				Score:           0.9 - float32(i)/10,
				Tags:            tags,
				FileSize:        uint64(1<<20) * uint64(i+1),
			},
			AppID:      workshop.DefaultAppID,
			PreviewURL: "https://steamuserimages-a.akamaihd.net/ugc/" + strconv.Itoa(int(id)) + "/preview.jpg",
			Stats:      map[sdk.StatisticType]uint64{sdk.StatSubscriptions: uint64(1000 * (len(titles) - i))},
		})
	}
	return f
}
