// Package fake is an in-memory sdk.Client whose completions are delivered only
// from RunCallbacks, like the real SDK. Tests use it to hold, delay and fail
// queries deterministically.
package fake

import (
	"cmp"
	"slices"
	"sync"

	"github.com/shruggr/workshop/sdk"
)

// Entry is a catalog item known to the fake
type Entry struct {
	Result     sdk.QueryResult
	AppID      sdk.AppID
	PreviewURL string // empty means no preview
	Stats      map[sdk.StatisticType]uint64
}

type completion struct {
	due int
	run func()
}

// Client implements sdk.Client and sdk.Pump
type Client struct {
	mu sync.Mutex

	items     map[sdk.PublishedFileID]*Entry
	steamID   sdk.SteamID
	name      string
	avatars   map[sdk.SteamID][]byte
	installed map[sdk.AppID]string

	pending []completion
	ticks   int
	latency int
	held    bool

	createErr error
	queryErr  error

	created   int
	submitted int
	excluded  [][]string
}

// Option configures the fake
type Option func(*Client)

// WithUser sets the signed-in user
func WithUser(id sdk.SteamID, name string) Option {
	return func(c *Client) {
		c.steamID = id
		c.name = name
	}
}

// WithAvatar sets the RGBA medium avatar for a user
func WithAvatar(id sdk.SteamID, rgba []byte) Option {
	return func(c *Client) {
		c.avatars[id] = rgba
	}
}

// WithLatency delays each completion until RunCallbacks has run ticks more times
func WithLatency(ticks int) Option {
	return func(c *Client) {
		if ticks > 0 {
			c.latency = ticks
		}
	}
}

// WithInstalledApp marks an app as installed at dir
func WithInstalledApp(app sdk.AppID, dir string) Option {
	return func(c *Client) {
		c.installed[app] = dir
	}
}

// New creates an empty fake
func New(opts ...Option) *Client {
	c := &Client{
		items:     make(map[sdk.PublishedFileID]*Entry),
		avatars:   make(map[sdk.SteamID][]byte),
		installed: make(map[sdk.AppID]string),
		steamID:   76561197960287930,
		name:      "fake user",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddItem adds or replaces a catalog entry
func (c *Client) AddItem(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := e
	cp.Result.Tags = append([]string{}, e.Result.Tags...)
	c.items[e.Result.PublishedFileID] = &cp
}

// RemoveItem deletes a catalog entry
func (c *Client) RemoveItem(id sdk.PublishedFileID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, id)
}

// FailQueries makes every completion delivered from now on report err.
// nil restores normal behaviour.
func (c *Client) FailQueries(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queryErr = err
}

// FailCreate makes query construction fail with err. nil restores normal behaviour.
func (c *Client) FailCreate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.createErr = err
}

// Hold stops RunCallbacks from delivering completions
func (c *Client) Hold() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.held = true
}

// Release lets RunCallbacks deliver completions again
func (c *Client) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.held = false
}

// Pending returns the number of undelivered completions
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// Created returns how many queries were successfully built
func (c *Client) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.created
}

// Submitted returns how many queries were fetched
func (c *Client) Submitted() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.submitted
}

// ExcludedTags returns the exclusion tags of every submitted query, in order
func (c *Client) ExcludedTags() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]string, len(c.excluded))
	for i, tags := range c.excluded {
		out[i] = append([]string{}, tags...)
	}
	return out
}

// RunCallbacks delivers every due completion on the calling goroutine
func (c *Client) RunCallbacks() {
	c.mu.Lock()
	c.ticks++
	if c.held {
		c.mu.Unlock()
		return
	}
	var due []completion
	remaining := c.pending[:0]
	for _, p := range c.pending {
		if p.due <= c.ticks {
			due = append(due, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	c.pending = remaining
	c.mu.Unlock()

	for _, p := range due {
		p.run()
	}
}

// UGC returns the query builder
func (c *Client) UGC() sdk.UGC { return (*ugc)(c) }

// User returns the signed-in user
func (c *Client) User() sdk.User { return (*user)(c) }

// Friends returns persona data
func (c *Client) Friends() sdk.Friends { return (*friends)(c) }

// Apps returns installed app state
func (c *Client) Apps() sdk.Apps { return (*apps)(c) }

func (c *Client) build(q *query) (sdk.Query, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.createErr != nil {
		return nil, c.createErr
	}
	c.created++
	q.client = c
	return q, nil
}

func (c *Client) submit(q *query, cb sdk.FetchCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitted++
	c.excluded = append(c.excluded, append([]string{}, q.exclude...))
	c.pending = append(c.pending, completion{
		due: c.ticks + 1 + c.latency,
		run: func() { c.complete(q, cb) },
	})
}

func (c *Client) complete(q *query, cb sdk.FetchCallback) {
	c.mu.Lock()
	if err := c.queryErr; err != nil {
		c.mu.Unlock()
		cb(nil, err)
		return
	}
	res := c.resolve(q)
	c.mu.Unlock()

	cb(res, nil)
}

// resolve runs under c.mu
func (c *Client) resolve(q *query) *results {
	switch q.kind {
	case queryItems:
		res := &results{total: uint32(len(q.ids))}
		for _, id := range q.ids {
			e, ok := c.items[id]
			if !ok || hasAnyTag(e, q.exclude) {
				res.slots = append(res.slots, nil)
				continue
			}
			res.slots = append(res.slots, snapshot(e))
		}
		return res

	case queryItem:
		e, ok := c.items[q.ids[0]]
		if !ok || hasAnyTag(e, q.exclude) {
			return &results{}
		}
		return &results{total: 1, slots: []*Entry{snapshot(e)}}

	default:
		var matches []*Entry
		for _, e := range c.items {
			if e.Result.Owner.AccountID() != q.user.Account {
				continue
			}
			if q.user.AppID != 0 && e.AppID != q.user.AppID {
				continue
			}
			if hasAnyTag(e, q.exclude) {
				continue
			}
			matches = append(matches, e)
		}
		sortEntries(matches, q.user.Order)

		res := &results{total: uint32(len(matches))}
		start := int(q.user.Page-1) * sdk.ResultsPerPage
		for i := start; i < len(matches) && i < start+sdk.ResultsPerPage; i++ {
			res.slots = append(res.slots, snapshot(matches[i]))
		}
		return res
	}
}

func sortEntries(entries []*Entry, order sdk.UserListOrder) {
	slices.SortFunc(entries, func(a, b *Entry) int {
		var c int
		switch order {
		case sdk.OrderCreationDesc:
			c = cmp.Compare(b.Result.TimeCreated, a.Result.TimeCreated)
		case sdk.OrderTitleAsc:
			c = cmp.Compare(a.Result.Title, b.Result.Title)
		default:
			c = cmp.Compare(b.Result.TimeUpdated, a.Result.TimeUpdated)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Result.PublishedFileID, b.Result.PublishedFileID)
	})
}

func hasAnyTag(e *Entry, tags []string) bool {
	for _, want := range tags {
		for _, have := range e.Result.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

func snapshot(e *Entry) *Entry {
	cp := *e
	cp.Result.Tags = append([]string{}, e.Result.Tags...)
	return &cp
}
