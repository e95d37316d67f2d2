package webapi

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/shruggr/workshop/models"
	"github.com/shruggr/workshop/sdk"
)

const testSteamID sdk.SteamID = 76561198000000001

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(&Config{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		SteamID:   testSteamID,
		RateLimit: rate.Inf,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// fetch submits q and pumps until its callback has run
func fetch(t *testing.T, c *Client, q sdk.Query) (sdk.QueryResults, error) {
	t.Helper()

	var (
		res  sdk.QueryResults
		err  error
		done bool
	)
	q.Fetch(func(r sdk.QueryResults, e error) {
		res, err, done = r, e, true
	})

	deadline := time.Now().Add(5 * time.Second)
	for !done {
		if time.Now().After(deadline) {
			t.Fatal("Callback never delivered")
		}
		c.RunCallbacks()
		time.Sleep(time.Millisecond)
	}
	return res, err
}

func TestQueryItemsPositional(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ISteamRemoteStorage/GetPublishedFileDetails/v1/" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("Failed to parse form: %v", err)
			return
		}
		if r.PostForm.Get("itemcount") != "3" || r.PostForm.Get("publishedfileids[1]") != "20" {
			t.Errorf("Unexpected form: %v", r.PostForm)
		}
		if r.PostForm.Get("key") != "test-key" {
			t.Error("Expected API key")
		}
		fmt.Fprint(w, `{"response":{"result":1,"resultcount":3,"publishedfiledetails":[
			{"publishedfileid":"30","result":1,"creator":"76561198000000001","title":"A","description":"first",
			 "preview_url":"https://img/30.jpg","file_size":"2048","time_created":10,"time_updated":20,
			 "subscriptions":7,"favorited":2,"views":99,"tags":[{"tag":"Tool"}]},
			{"publishedfileid":"20","result":9},
			{"publishedfileid":"10","result":1,"title":"C","file_size":"5368709120","tags":[{"tag":"dupe"}]}
		]}}`)
	})

	q, err := c.UGC().QueryItems([]sdk.PublishedFileID{30, 20, 10})
	if err != nil {
		t.Fatalf("QueryItems failed: %v", err)
	}
	res, err := fetch(t, c, q)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if res.TotalResults() != 3 || res.ReturnedResults() != 3 {
		t.Errorf("Unexpected counts: %d / %d", res.TotalResults(), res.ReturnedResults())
	}

	slots := res.Results()
	if slots[0] == nil || slots[0].Title != "A" || slots[0].FileSize != 2048 || slots[0].Owner != testSteamID {
		t.Errorf("Unexpected first slot: %+v", slots[0])
	}
	if slots[1] != nil {
		t.Errorf("Expected nil slot for missing item, got %+v", slots[1])
	}
	// sizes past 4 GiB must survive intact
	if slots[2] == nil || slots[2].FileSize != 5<<30 {
		t.Errorf("Unexpected last slot: %+v", slots[2])
	}

	if url, ok := res.PreviewURL(0); !ok || url != "https://img/30.jpg" {
		t.Errorf("Unexpected preview: %q %v", url, ok)
	}
	if _, ok := res.PreviewURL(2); ok {
		t.Error("Expected no preview for last slot")
	}
	if subs, ok := res.Statistic(0, sdk.StatSubscriptions); !ok || subs != 7 {
		t.Errorf("Unexpected subscriptions: %d %v", subs, ok)
	}
	if views, _ := res.Statistic(0, sdk.StatUniqueWebsiteViews); views != 99 {
		t.Errorf("Unexpected views: %d", views)
	}
}

func TestExcludedTagBecomesNilSlot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"result":1,"resultcount":1,"publishedfiledetails":[
			{"publishedfileid":"10","result":1,"title":"C","tags":[{"tag":"dupe"}]}]}}`)
	})

	q, _ := c.UGC().QueryItem(10)
	res, err := fetch(t, c, q.ExcludeTag("dupe"))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.TotalResults() != 0 {
		t.Errorf("Expected excluded item to resolve empty, got %d", res.TotalResults())
	}
}

func TestQueryItemMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"result":1,"resultcount":1,"publishedfiledetails":[{"publishedfileid":"5","result":9}]}}`)
	})

	q, err := c.UGC().QueryItem(5)
	if err != nil {
		t.Fatalf("QueryItem failed: %v", err)
	}
	res, err := fetch(t, c, q)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.TotalResults() != 0 {
		t.Errorf("Expected zero results, got %d", res.TotalResults())
	}
	if _, ok := res.Get(0); ok {
		t.Error("Expected no result at index 0")
	}
}

func TestHTTPFailureIsSDKError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	q, _ := c.UGC().QueryItem(1)
	_, err := fetch(t, c, q)

	var sdkErr *sdk.Error
	if !errors.As(err, &sdkErr) {
		t.Fatalf("Expected *sdk.Error, got %v", err)
	}
	if sdkErr.Result != sdk.ResultRateLimitExceeded {
		t.Errorf("Expected rate limit result, got %v", sdkErr.Result)
	}
}

func TestCallbacksOnlyFromPump(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"result":1,"resultcount":0,"publishedfiledetails":[]}}`)
	})

	q, _ := c.UGC().QueryItem(1)
	called := false
	q.Fetch(func(sdk.QueryResults, error) { called = true })

	deadline := time.Now().Add(5 * time.Second)
	for c.InFlight() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("Request never finished")
		}
		time.Sleep(time.Millisecond)
	}
	if called {
		t.Fatal("Callback ran without RunCallbacks")
	}

	c.RunCallbacks()
	if !called {
		t.Error("Callback should run from RunCallbacks")
	}
}

func TestQueryUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/IPublishedFileService/GetUserFiles/v1/" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		params := r.URL.Query()
		if params.Get("steamid") != "76561198000000001" {
			t.Errorf("Unexpected steamid %q", params.Get("steamid"))
		}
		if params.Get("page") != "2" || params.Get("numperpage") != "50" || params.Get("appid") != "4000" {
			t.Errorf("Unexpected paging params: %v", params)
		}
		if params.Get("sortmethod") != "lastupdated" || params.Get("type") != "myfiles" {
			t.Errorf("Unexpected listing params: %v", params)
		}
		if params.Get("excludedtags[0]") != "dupe" {
			t.Errorf("Expected excluded tag, got %v", params)
		}
		fmt.Fprint(w, `{"response":{"total":51,"publishedfiledetails":[
			{"publishedfileid":"99","creator":"76561198000000001","title":"Last","file_description":"desc",
			 "time_updated":5,"vote_data":{"score":0.5}}]}}`)
	})

	q, err := c.UGC().QueryUser(sdk.UserQuery{
		Account: testSteamID.AccountID(),
		List:    sdk.UserListPublished,
		Order:   sdk.OrderLastUpdatedDesc,
		AppID:   4000,
		Page:    2,
	})
	if err != nil {
		t.Fatalf("QueryUser failed: %v", err)
	}
	res, err := fetch(t, c, q.ExcludeTag("dupe"))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if res.TotalResults() != 51 || res.ReturnedResults() != 1 {
		t.Errorf("Unexpected counts: %d / %d", res.TotalResults(), res.ReturnedResults())
	}
	r, ok := res.Get(0)
	if !ok || r.Title != "Last" || r.Description != "desc" || r.Score != 0.5 {
		t.Errorf("Unexpected result: %+v", r)
	}
}

func TestQueryConstructionErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected")
	})

	if _, err := c.UGC().QueryItems(nil); !errors.Is(err, sdk.ErrCreateQuery) {
		t.Errorf("Expected ErrCreateQuery for empty batch, got %v", err)
	}
	if _, err := c.UGC().QueryUser(sdk.UserQuery{Page: 0}); !errors.Is(err, sdk.ErrCreateQuery) {
		t.Errorf("Expected ErrCreateQuery for page 0, got %v", err)
	}

	keyless, err := New(&Config{BaseURL: "http://127.0.0.1:0", SteamID: testSteamID})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if _, err := keyless.UGC().QueryUser(sdk.UserQuery{Page: 1}); !errors.Is(err, sdk.ErrCreateQuery) {
		t.Errorf("Expected ErrCreateQuery without API key, got %v", err)
	}
	if keyless.Friends().RequestUserInformation(testSteamID, false) {
		t.Error("Persona cannot load without an API key")
	}
}

func TestPersonaLoad(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/ISteamUser/GetPlayerSummaries/v2/"):
			fmt.Fprintf(w, `{"response":{"players":[{"steamid":"76561198000000001","personaname":"tester","avatarmedium":"%s/avatar.png"}]}}`, server.URL)
		case r.URL.Path == "/avatar.png":
			w.Write(buf.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c, err := New(&Config{BaseURL: server.URL, APIKey: "k", SteamID: testSteamID, RateLimit: rate.Inf})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer c.Close()

	if !c.Friends().RequestUserInformation(testSteamID, false) {
		t.Fatal("Expected persona request to start")
	}

	deadline := time.Now().Add(5 * time.Second)
	for c.Friends().Name() == "" {
		if time.Now().After(deadline) {
			t.Fatal("Persona never loaded")
		}
		c.RunCallbacks()
		time.Sleep(time.Millisecond)
	}

	if c.Friends().Name() != "tester" {
		t.Errorf("Unexpected name %q", c.Friends().Name())
	}
	rgba, ok := c.Friends().MediumAvatar(testSteamID)
	if !ok || len(rgba) != models.AvatarSize*models.AvatarSize*4 {
		t.Fatalf("Unexpected avatar length %d ok=%v", len(rgba), ok)
	}
	if rgba[0] != 200 || rgba[3] != 255 {
		t.Errorf("Unexpected first pixel %v", rgba[:4])
	}
	if _, ok := c.Friends().MediumAvatar(testSteamID + 1); ok {
		t.Error("Only the local user has an avatar")
	}
}

func TestInstalledApps(t *testing.T) {
	c, err := New(&Config{SteamID: testSteamID, Installed: map[sdk.AppID]string{4000: "/games/gmod"}})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if !c.Apps().IsAppInstalled(4000) || c.Apps().AppInstallDir(4000) != "/games/gmod" {
		t.Error("Expected app 4000 installed")
	}
	if c.Apps().IsAppInstalled(440) {
		t.Error("Expected app 440 not installed")
	}
}

func TestQueryItemsChunked(t *testing.T) {
	var requests atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("Failed to parse form: %v", err)
			return
		}
		n, _ := strconv.Atoi(r.PostForm.Get("itemcount"))
		if n > maxDetailsPerRequest {
			t.Errorf("Request carries %d ids", n)
		}

		var parts []string
		for i := 0; i < n; i++ {
			id := r.PostForm.Get(fmt.Sprintf("publishedfileids[%d]", i))
			parts = append(parts, fmt.Sprintf(`{"publishedfileid":"%s","result":1,"title":"t%s"}`, id, id))
		}
		fmt.Fprintf(w, `{"response":{"result":1,"resultcount":%d,"publishedfiledetails":[%s]}}`, n, strings.Join(parts, ","))
	})

	ids := make([]sdk.PublishedFileID, 150)
	for i := range ids {
		ids[i] = sdk.PublishedFileID(1000 + i)
	}

	q, err := c.UGC().QueryItems(ids)
	if err != nil {
		t.Fatalf("QueryItems failed: %v", err)
	}
	res, err := fetch(t, c, q)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if requests.Load() != 2 {
		t.Errorf("Expected 2 requests, got %d", requests.Load())
	}
	slots := res.Results()
	if len(slots) != len(ids) {
		t.Fatalf("Expected %d slots, got %d", len(ids), len(slots))
	}
	for i, id := range ids {
		if slots[i] == nil || slots[i].PublishedFileID != id {
			t.Fatalf("Slot %d out of order: %+v", i, slots[i])
		}
	}
}
