// Package workshop is the synchronous query façade over the Workshop SDK.
//
// Every query builds an SDK request, registers a completion callback that
// reconciles the response and writes the item cache, then blocks the calling
// goroutine until the callback has filled the query's result slot or the
// caller's context ends. Query methods block and must not be called from a
// UI event loop.
package workshop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/shruggr/workshop/cache"
	"github.com/shruggr/workshop/localfiles"
	"github.com/shruggr/workshop/models"
	"github.com/shruggr/workshop/profile"
	"github.com/shruggr/workshop/pump"
	"github.com/shruggr/workshop/sdk"
)

const (
	// DefaultAppID is Garry's Mod
	DefaultAppID sdk.AppID = 4000

	// DefaultExcludeTag hides items flagged as duplicates from Browse
	DefaultExcludeTag = "dupe"
)

var (
	// ErrRequestConstruction means the query could not be built; no request was sent
	ErrRequestConstruction = errors.New("failed to build catalog request")

	// ErrCatalogQuery means the service reported a failure for an in-flight query
	ErrCatalogQuery = errors.New("catalog query failed")

	// ErrCancelled means the caller's context ended before the query resolved
	ErrCancelled = errors.New("catalog query cancelled")
)

// Config holds Session settings. Zero values select defaults.
type Config struct {
	AppID         sdk.AppID     // App whose items Browse enumerates
	ExcludeTag    string        // Tag hidden from Browse results
	PollInterval  time.Duration // Wait between pump drives
	DedicatedPump bool          // Drive the pump from one background goroutine
	LocalFiles    localfiles.Store
	Logger        *slog.Logger
}

// Session owns the SDK client, its callback pump and the item cache for the
// lifetime of the process. It is safe for concurrent use.
type Session struct {
	client  sdk.Client
	driver  *pump.Driver
	cache   cache.ItemCache
	account sdk.AccountID
	config  Config
	logger  *slog.Logger

	stopPump context.CancelFunc
	pumpDone chan struct{}
	closeMu  sync.Mutex
}

// New creates a Session over an initialized SDK client
func New(client sdk.Client, p sdk.Pump, itemCache cache.ItemCache, config *Config) (*Session, error) {
	if client == nil || p == nil {
		return nil, fmt.Errorf("sdk client and pump are required")
	}
	if itemCache == nil {
		return nil, fmt.Errorf("item cache is required")
	}

	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	if cfg.AppID == 0 {
		cfg.AppID = DefaultAppID
	}
	if cfg.ExcludeTag == "" {
		cfg.ExcludeTag = DefaultExcludeTag
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	steamID := client.User().SteamID()
	// persona data for the local user is loaded asynchronously by the SDK
	client.Friends().RequestUserInformation(steamID, false)

	s := &Session{
		client:  client,
		driver:  pump.NewDriver(p, cfg.PollInterval, cfg.Logger),
		cache:   itemCache,
		account: steamID.AccountID(),
		config:  cfg,
		logger:  cfg.Logger,
	}

	if cfg.DedicatedPump {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopPump = cancel
		s.pumpDone = make(chan struct{})
		go func() {
			defer close(s.pumpDone)
			s.driver.Run(ctx)
		}()
	}

	s.logger.Debug("Workshop session ready", "account", s.account, "app", cfg.AppID, "dedicated_pump", cfg.DedicatedPump)
	return s, nil
}

// Close stops the dedicated pump goroutine, if any
func (s *Session) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.stopPump != nil {
		s.stopPump()
		<-s.pumpDone
		s.stopPump = nil
	}
	return nil
}

// Driver exposes the pump driver, e.g. for diagnostics
func (s *Session) Driver() *pump.Driver {
	return s.driver
}

// outcome is what a completion callback hands to the waiting caller
type outcome[T any] struct {
	value T
	err   error
}

// execute runs the bridging protocol shared by every query
func execute[T any](ctx context.Context, s *Session, op string, build func() (sdk.Query, error), reconcile func(sdk.QueryResults) T) (T, error) {
	var zero T

	if ctx.Err() != nil {
		return zero, fmt.Errorf("%s: %w: %w", op, ErrCancelled, context.Cause(ctx))
	}

	query, err := build()
	if err != nil {
		return zero, fmt.Errorf("%s: %w: %w", op, ErrRequestConstruction, err)
	}

	slot := pump.NewSlot[outcome[T]]()
	query.Fetch(func(res sdk.QueryResults, err error) {
		if err != nil {
			slot.Set(outcome[T]{err: err})
			return
		}
		slot.Set(outcome[T]{value: reconcile(res)})
	})

	start := time.Now()
	out, err := pump.Wait(ctx, s.driver, slot)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("Query abandoned", "op", op, "waited", time.Since(start))
			return zero, fmt.Errorf("%s: %w: %w", op, ErrCancelled, context.Cause(ctx))
		}
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	if out.err != nil {
		s.logger.Warn("Catalog query failed", "op", op, "error", out.err)
		return zero, fmt.Errorf("%s: %w: %w", op, ErrCatalogQuery, out.err)
	}

	s.logger.Debug("Query resolved", "op", op, "waited", time.Since(start))
	return out.value, nil
}

// FetchOne resolves a single item. A nil item with a nil error means the
// catalog confirmed the id does not exist; that absence is cached.
func (s *Session) FetchOne(ctx context.Context, id models.ItemID) (*models.Item, error) {
	item, err := execute(ctx, s, "fetch item "+id.String(),
		func() (sdk.Query, error) {
			return s.client.UGC().QueryItem(id)
		},
		func(res sdk.QueryResults) *models.Item {
			if res.TotalResults() == 0 {
				s.store(id, nil)
				return nil
			}
			r, ok := res.Get(0)
			if !ok {
				s.store(id, nil)
				return nil
			}
			item := s.enrich(res, 0, r)
			s.store(item.ID, item)
			return item
		},
	)
	if err != nil || item == nil {
		return nil, err
	}

	s.attachLocalFiles(ctx, item)
	return item, nil
}

type batch struct {
	total uint32
	items []*models.Item
}

// FetchMany resolves a batch of items. The returned slice has one entry per
// requested id, in request order; ids the catalog cannot resolve are returned
// as stub items and cached as absent.
func (s *Session) FetchMany(ctx context.Context, ids []models.ItemID) (uint32, []*models.Item, error) {
	if len(ids) == 0 {
		return 0, nil, fmt.Errorf("fetch items: %w: no item ids", ErrRequestConstruction)
	}
	requested := append([]models.ItemID{}, ids...)

	out, err := execute(ctx, s, "fetch "+strconv.Itoa(len(requested))+" items",
		func() (sdk.Query, error) {
			return s.client.UGC().QueryItems(requested)
		},
		func(res sdk.QueryResults) batch {
			return batch{total: res.TotalResults(), items: s.reconcile(requested, res)}
		},
	)
	if err != nil {
		return 0, nil, err
	}

	s.attachLocalFiles(ctx, out.items...)
	return out.total, out.items, nil
}

// reconcile walks the requested ids and the response slots together, emitting
// exactly one item per requested id in request order
func (s *Session) reconcile(ids []models.ItemID, res sdk.QueryResults) []*models.Item {
	slots := res.Results()
	items := make([]*models.Item, 0, len(ids))

	next := 0
	for _, id := range ids {
		if next >= len(slots) {
			// short response: nothing was said about this id, so absence is not cached
			items = append(items, models.StubItem(id))
			continue
		}

		index := uint32(next)
		r := slots[next]
		next++

		if r == nil {
			s.store(id, nil)
			items = append(items, models.StubItem(id))
			continue
		}

		item := s.enrich(res, index, r)
		s.store(item.ID, item)
		items = append(items, item)
	}

	if len(slots) != len(ids) {
		s.logger.Warn("Batch response size mismatch", "requested", len(ids), "returned", len(slots))
	}
	return items
}

// Browse returns one page of the local user's published items, most recently
// updated first, without items carrying the exclusion tag. Pages start at 1.
func (s *Session) Browse(ctx context.Context, page uint32) (uint32, []*models.Item, error) {
	if page < 1 {
		return 0, nil, fmt.Errorf("browse: %w: pages start at 1", ErrRequestConstruction)
	}

	out, err := execute(ctx, s, "browse page "+strconv.FormatUint(uint64(page), 10),
		func() (sdk.Query, error) {
			q, err := s.client.UGC().QueryUser(sdk.UserQuery{
				Account: s.account,
				List:    sdk.UserListPublished,
				Type:    sdk.UGCItemsReadyToUse,
				Order:   sdk.OrderLastUpdatedDesc,
				AppID:   s.config.AppID,
				Page:    page,
			})
			if err != nil {
				return nil, err
			}
			return q.ExcludeTag(s.config.ExcludeTag), nil
		},
		func(res sdk.QueryResults) batch {
			b := batch{total: res.TotalResults()}
			for i, r := range res.Results() {
				if r == nil {
					continue
				}
				item := s.enrich(res, uint32(i), r)
				s.store(item.ID, item)
				if item.HasTag(s.config.ExcludeTag) {
					continue
				}
				b.items = append(b.items, item)
			}
			return b
		},
	)
	if err != nil {
		return 0, nil, err
	}

	s.attachLocalFiles(ctx, out.items...)
	return out.total, out.items, nil
}

// Known returns what the cache holds for id without issuing a query.
// ok is false for ids never queried; (nil, true) means known absent.
func (s *Session) Known(id models.ItemID) (item *models.Item, ok bool) {
	item, ok = s.cache.Get(id)
	if item != nil {
		s.attachLocalFiles(context.Background(), item)
	}
	return item, ok
}

// Lookup serves id from the cache when it has been queried before and falls
// back to FetchOne otherwise
func (s *Session) Lookup(ctx context.Context, id models.ItemID) (*models.Item, error) {
	if item, ok := s.Known(id); ok {
		return item, nil
	}
	return s.FetchOne(ctx, id)
}

// CurrentUser reads the signed-in user from the SDK's local state
func (s *Session) CurrentUser() *models.UserProfile {
	steamID := s.client.User().SteamID()
	friends := s.client.Friends()

	p := &models.UserProfile{
		SteamID:   steamID,
		SteamID64: strconv.FormatUint(uint64(steamID), 10),
		Name:      friends.Name(),
	}

	if rgba, ok := friends.MediumAvatar(steamID); ok {
		img, err := profile.EncodeAvatar(rgba, models.AvatarSize)
		if err != nil {
			s.logger.Warn("Ignoring malformed avatar", "steamid", p.SteamID64, "error", err)
		} else {
			p.Avatar = img
		}
	}

	return p
}

// GameInstallDir returns the configured app's install directory if installed
func (s *Session) GameInstallDir() (string, bool) {
	apps := s.client.Apps()
	if !apps.IsAppInstalled(s.config.AppID) {
		return "", false
	}
	return apps.AppInstallDir(s.config.AppID), true
}

// enrich builds an item from result index with its preview and subscriber count
func (s *Session) enrich(res sdk.QueryResults, index uint32, r *sdk.QueryResult) *models.Item {
	item := models.NewItem(r)
	if url, ok := res.PreviewURL(index); ok {
		item.PreviewURL = &url
	}
	item.Subscriptions, _ = res.Statistic(index, sdk.StatSubscriptions)
	return item
}

// store writes a completed query's outcome for id; nil records absence
func (s *Session) store(id models.ItemID, item *models.Item) {
	if err := s.cache.Put(id, item); err != nil {
		s.logger.Warn("Failed to cache item", "id", id, "error", err)
	}
}

// attachLocalFiles fills LocalFile from the association store.
// It runs on the caller's goroutine so the pump never waits on disk.
func (s *Session) attachLocalFiles(ctx context.Context, items ...*models.Item) {
	if s.config.LocalFiles == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, item := range items {
		assoc, err := s.config.LocalFiles.Get(ctx, item.ID)
		if err != nil {
			s.logger.Warn("Local file lookup failed", "id", item.ID, "error", err)
			continue
		}
		if assoc != nil {
			path := assoc.Path
			item.LocalFile = &path
		}
	}
}
