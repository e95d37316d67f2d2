package webapi

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/shruggr/workshop/sdk"
)

const (
	// maxDetailsPerRequest is the most ids GetPublishedFileDetails accepts at once
	maxDetailsPerRequest = 100

	// maxConcurrentRequests limits parallel requests for one batch query
	maxConcurrentRequests = 2
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

// Fetch sends the request in the background; cb runs from RunCallbacks
func (q *query) Fetch(cb sdk.FetchCallback) {
	c := q.client
	c.async(func(ctx context.Context) func() {
		res, err := c.resolve(ctx, q)
		if err != nil {
			c.logger.Debug("Web API request failed", "kind", q.kind, "error", err)
			return func() { cb(nil, err) }
		}
		return func() { cb(res, nil) }
	})
}

type ugc Client

func (u *ugc) QueryItem(id sdk.PublishedFileID) (sdk.Query, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: item id is zero", sdk.ErrCreateQuery)
	}
	return &query{client: (*Client)(u), kind: queryItem, ids: []sdk.PublishedFileID{id}}, nil
}

func (u *ugc) QueryItems(ids []sdk.PublishedFileID) (sdk.Query, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no item ids", sdk.ErrCreateQuery)
	}
	return &query{client: (*Client)(u), kind: queryItems, ids: slices.Clone(ids)}, nil
}

func (u *ugc) QueryUser(q sdk.UserQuery) (sdk.Query, error) {
	if q.Page == 0 {
		return nil, fmt.Errorf("%w: pages start at 1", sdk.ErrCreateQuery)
	}
	if u.config.APIKey == "" {
		return nil, fmt.Errorf("%w: user listings need an API key", sdk.ErrCreateQuery)
	}
	return &query{client: (*Client)(u), kind: queryUser, user: q}, nil
}

// resolve runs on a request goroutine
func (c *Client) resolve(ctx context.Context, q *query) (*results, error) {
	if q.kind == queryUser {
		resp, err := c.fetchUserFiles(ctx, q.user, q.exclude)
		if err != nil {
			return nil, err
		}
		res := &results{total: resp.Response.Total}
		for i := range resp.Response.Details {
			res.slots = append(res.slots, &resp.Response.Details[i])
		}
		return res, nil
	}

	details, err := c.fetchDetailsChunked(ctx, q.ids)
	if err != nil {
		return nil, err
	}

	// details come back positionally; unresolvable ids carry a non-OK result
	res := &results{}
	for _, d := range details {
		if sdk.Result(d.Result) != sdk.ResultOK || d.hasAnyTag(q.exclude) {
			res.slots = append(res.slots, nil)
			continue
		}
		res.slots = append(res.slots, d)
	}

	if q.kind == queryItem {
		if len(res.slots) == 0 || res.slots[0] == nil {
			return &results{}, nil
		}
		res.total = 1
		return res, nil
	}

	res.total = uint32(len(res.slots))
	return res, nil
}

// fetchDetailsChunked splits ids into requests the API accepts and joins the
// details back in request order
func (c *Client) fetchDetailsChunked(ctx context.Context, ids []sdk.PublishedFileID) ([]*fileDetails, error) {
	chunks := slices.Collect(slices.Chunk(ids, maxDetailsPerRequest))
	parts := make([][]fileDetails, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRequests)
	for i, chunk := range chunks {
		g.Go(func() error {
			resp, err := c.fetchDetails(gctx, chunk)
			if err != nil {
				return err
			}
			parts[i] = resp.Response.Details
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*fileDetails, 0, len(ids))
	for _, part := range parts {
		for i := range part {
			out = append(out, &part[i])
		}
	}
	return out, nil
}

func (d *fileDetails) hasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range d.Tags {
			if have.Tag == want {
				return true
			}
		}
	}
	return false
}

// results implements sdk.QueryResults; nil slots are ids the service could not resolve
type results struct {
	total uint32
	slots []*fileDetails
}

func (r *results) TotalResults() uint32    { return r.total }
func (r *results) ReturnedResults() uint32 { return uint32(len(r.slots)) }

func (r *results) Get(index uint32) (*sdk.QueryResult, bool) {
	if int(index) >= len(r.slots) || r.slots[index] == nil {
		return nil, false
	}
	return r.slots[index].toResult(), true
}

func (r *results) Results() []*sdk.QueryResult {
	out := make([]*sdk.QueryResult, len(r.slots))
	for i, d := range r.slots {
		if d != nil {
			out[i] = d.toResult()
		}
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
	return r.slots[index].statistic(stat)
}
