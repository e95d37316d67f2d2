package fake

import (
	"fmt"

	"github.com/shruggr/workshop/sdk"
)

type queryKind int

const (
	queryItem queryKind = iota
	queryItems
	queryUser
)

type query struct {
	client  *Client
	kind    queryKind
	ids     []sdk.PublishedFileID
	user    sdk.UserQuery
	exclude []string
}

func (q *query) ExcludeTag(tag string) sdk.Query {
	q.exclude = append(q.exclude, tag)
	return q
}

func (q *query) Fetch(cb sdk.FetchCallback) {
	q.client.submit(q, cb)
}

type ugc Client

func (u *ugc) QueryItem(id sdk.PublishedFileID) (sdk.Query, error) {
	return (*Client)(u).build(&query{kind: queryItem, ids: []sdk.PublishedFileID{id}})
}

func (u *ugc) QueryItems(ids []sdk.PublishedFileID) (sdk.Query, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no item ids", sdk.ErrCreateQuery)
	}
	return (*Client)(u).build(&query{kind: queryItems, ids: append([]sdk.PublishedFileID{}, ids...)})
}

func (u *ugc) QueryUser(q sdk.UserQuery) (sdk.Query, error) {
	if q.Page == 0 {
		return nil, fmt.Errorf("%w: pages start at 1", sdk.ErrCreateQuery)
	}
	return (*Client)(u).build(&query{kind: queryUser, user: q})
}

type results struct {
	total uint32
	slots []*Entry
}

func (r *results) TotalResults() uint32    { return r.total }
func (r *results) ReturnedResults() uint32 { return uint32(len(r.slots)) }

func (r *results) Get(index uint32) (*sdk.QueryResult, bool) {
	if int(index) >= len(r.slots) || r.slots[index] == nil {
		return nil, false
	}
	res := r.slots[index].Result
	return &res, true
}

func (r *results) Results() []*sdk.QueryResult {
	out := make([]*sdk.QueryResult, len(r.slots))
	for i := range r.slots {
		out[i], _ = r.Get(uint32(i))
	}
	return out
}

func (r *results) PreviewURL(index uint32) (string, bool) {
	if int(index) >= len(r.slots) || r.slots[index] == nil || r.slots[index].PreviewURL == "" {
		return "", false
	}
	return r.slots[index].PreviewURL, true
}

func (r *results) Statistic(index uint32, stat sdk.StatisticType) (uint64, bool) {
	if int(index) >= len(r.slots) || r.slots[index] == nil {
		return 0, false
	}
	v, ok := r.slots[index].Stats[stat]
	return v, ok
}

type user Client

func (u *user) SteamID() sdk.SteamID {
	c := (*Client)(u)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steamID
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
	c.mu.Lock()
	defer c.mu.Unlock()
	rgba, ok := c.avatars[id]
	if !ok {
		return nil, false
	}
	return append([]byte{}, rgba...), true
}

func (f *friends) RequestUserInformation(id sdk.SteamID, nameOnly bool) bool {
	return false
}

type apps Client

func (a *apps) IsAppInstalled(app sdk.AppID) bool {
	c := (*Client)(a)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.installed[app]
	return ok
}

func (a *apps) AppInstallDir(app sdk.AppID) string {
	c := (*Client)(a)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installed[app]
}
