// Package webapi implements sdk.Client over the public Steam Web API.
//
// Requests run on background goroutines but their completions are queued and
// only delivered from RunCallbacks, so callers see the same single-threaded
// pump contract as the native SDK.
package webapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shruggr/workshop/sdk"
)

// DefaultBaseURL is the public Steam Web API host
const DefaultBaseURL = "https://api.steampowered.com"

// Config holds Web API client settings
type Config struct {
	BaseURL    string               // API host, defaults to DefaultBaseURL
	APIKey     string               // Web API key, required for user listings and persona data
	SteamID    sdk.SteamID          // Local user
	Installed  map[sdk.AppID]string // Apps known to be installed, by install directory
	HTTPClient *http.Client         // Defaults to a client with a 30s timeout
	RateLimit  rate.Limit           // Requests per second, defaults to 4
	Logger     *slog.Logger
}

// Client implements sdk.Client and sdk.Pump
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	completions []func()
	inFlight    int
	name        string
	avatar      []byte
}

// New creates a Web API client
func New(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.SteamID == 0 {
		return nil, fmt.Errorf("SteamID is required")
	}

	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config:  cfg,
		http:    cfg.HTTPClient,
		limiter: rate.NewLimiter(cfg.RateLimit, 1),
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Close aborts in-flight requests and waits for their goroutines. Their
// completions are still queued and delivered by a later RunCallbacks.
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

// RunCallbacks delivers every queued completion on the calling goroutine
func (c *Client) RunCallbacks() {
	c.mu.Lock()
	ready := c.completions
	c.completions = nil
	c.mu.Unlock()

	for _, fn := range ready {
		fn()
	}
}

// InFlight returns the number of requests still running
func (c *Client) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inFlight
}

// UGC returns the query builder
func (c *Client) UGC() sdk.UGC { return (*ugc)(c) }

// User returns the configured local user
func (c *Client) User() sdk.User { return (*user)(c) }

// Friends returns persona data loaded by RequestUserInformation
func (c *Client) Friends() sdk.Friends { return (*friends)(c) }

// Apps returns the configured install state
func (c *Client) Apps() sdk.Apps { return (*apps)(c) }

// async runs work on its own goroutine and queues done for the pump
func (c *Client) async(work func(ctx context.Context) func()) {
	c.mu.Lock()
	c.inFlight++
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		done := work(c.ctx)

		c.mu.Lock()
		c.inFlight--
		c.completions = append(c.completions, done)
		c.mu.Unlock()
	}()
}

type user Client

func (u *user) SteamID() sdk.SteamID {
	return u.config.SteamID
}

type friends Client

func (f *friends) Name() string {
	c := (*Client)(f)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (f *friends) MediumAvatar(id sdk.SteamID) ([]byte, bool) {
	c := (*Client)(f)
	if id != c.config.SteamID {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.avatar == nil {
		return nil, false
	}
	return append([]byte{}, c.avatar...), true
}

// RequestUserInformation loads the local user's persona. It reports true while
// the data is being fetched.
func (f *friends) RequestUserInformation(id sdk.SteamID, nameOnly bool) bool {
	c := (*Client)(f)
	if id != c.config.SteamID || c.config.APIKey == "" {
		return false
	}

	c.async(func(ctx context.Context) func() {
		name, avatar, err := c.fetchPersona(ctx, id, !nameOnly)
		return func() {
			if err != nil {
				c.logger.Warn("Failed to load persona", "steamid", uint64(id), "error", err)
				return
			}
			c.mu.Lock()
			c.name = name
			if avatar != nil {
				c.avatar = avatar
			}
			c.mu.Unlock()
			c.logger.Debug("Persona loaded", "steamid", uint64(id), "name", name)
		}
	})
	return true
}

type apps Client

func (a *apps) IsAppInstalled(app sdk.AppID) bool {
	_, ok := a.config.Installed[app]
	return ok
}

func (a *apps) AppInstallDir(app sdk.AppID) string {
	return a.config.Installed[app]
}
