package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shruggr/workshop/models"
	"github.com/shruggr/workshop/sdk"
)

// maxBody caps how much of a response is read
const maxBody = 8 << 20

// flexUint decodes integers the API sends either as JSON numbers or strings
type flexUint uint64

func (f *flexUint) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	*f = flexUint(v)
	return nil
}

type apiTag struct {
	Tag string `json:"tag"`
}

// fileDetails covers the fields shared by GetPublishedFileDetails and GetUserFiles
type fileDetails struct {
	PublishedFileID flexUint `json:"publishedfileid"`
	Result          int      `json:"result"`
	Creator         flexUint `json:"creator"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	FileDescription string   `json:"file_description"`
	PreviewURL      string   `json:"preview_url"`
	FileSize        flexUint `json:"file_size"`
	TimeCreated     uint32   `json:"time_created"`
	TimeUpdated     uint32   `json:"time_updated"`
	Subscriptions   uint64   `json:"subscriptions"`
	Favorited       uint64   `json:"favorited"`
	Views           uint64   `json:"views"`
	Tags            []apiTag `json:"tags"`
	VoteData        *struct {
		Score float32 `json:"score"`
	} `json:"vote_data"`
}

func (d *fileDetails) toResult() *sdk.QueryResult {
	r := &sdk.QueryResult{
		PublishedFileID: sdk.PublishedFileID(d.PublishedFileID),
		Title:           d.Title,
		Description:     d.Description,
		Owner:           sdk.SteamID(d.Creator),
		TimeCreated:     d.TimeCreated,
		TimeUpdated:     d.TimeUpdated,
		FileSize:        uint64(d.FileSize),
		Tags:            make([]string, 0, len(d.Tags)),
	}
	if r.Description == "" {
		r.Description = d.FileDescription
	}
	if d.VoteData != nil {
		r.Score = d.VoteData.Score
	}
	for _, t := range d.Tags {
		r.Tags = append(r.Tags, t.Tag)
	}
	return r
}

func (d *fileDetails) statistic(stat sdk.StatisticType) (uint64, bool) {
	switch stat {
	case sdk.StatSubscriptions:
		return d.Subscriptions, true
	case sdk.StatFavorites:
		return d.Favorited, true
	case sdk.StatUniqueWebsiteViews:
		return d.Views, true
	}
	return 0, false
}

type detailsResponse struct {
	Response struct {
		Result      int           `json:"result"`
		ResultCount uint32        `json:"resultcount"`
		Details     []fileDetails `json:"publishedfiledetails"`
	} `json:"response"`
}

type userFilesResponse struct {
	Response struct {
		Total   uint32        `json:"total"`
		Details []fileDetails `json:"publishedfiledetails"`
	} `json:"response"`
}

type playerSummariesResponse struct {
	Response struct {
		Players []struct {
			SteamID      string `json:"steamid"`
			PersonaName  string `json:"personaname"`
			AvatarMedium string `json:"avatarmedium"`
		} `json:"players"`
	} `json:"response"`
}

// fetchDetails calls ISteamRemoteStorage/GetPublishedFileDetails
func (c *Client) fetchDetails(ctx context.Context, ids []sdk.PublishedFileID) (*detailsResponse, error) {
	form := url.Values{}
	form.Set("itemcount", strconv.Itoa(len(ids)))
	for i, id := range ids {
		form.Set(fmt.Sprintf("publishedfileids[%d]", i), id.String())
	}

	body, err := c.do(ctx, http.MethodPost, "/ISteamRemoteStorage/GetPublishedFileDetails/v1/", form)
	if err != nil {
		return nil, err
	}

	var resp detailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, sdk.NewError(sdk.ResultFail, fmt.Sprintf("failed to parse file details: %v", err))
	}
	if r := resp.Response.Result; r != 0 && sdk.Result(r) != sdk.ResultOK {
		return nil, sdk.NewError(sdk.Result(r), "file details query rejected")
	}
	return &resp, nil
}

// fetchUserFiles calls IPublishedFileService/GetUserFiles
func (c *Client) fetchUserFiles(ctx context.Context, q sdk.UserQuery, exclude []string) (*userFilesResponse, error) {
	params := url.Values{}
	params.Set("steamid", strconv.FormatUint(uint64(q.Account.SteamID()), 10))
	params.Set("appid", strconv.FormatUint(uint64(q.AppID), 10))
	params.Set("page", strconv.FormatUint(uint64(q.Page), 10))
	params.Set("numperpage", strconv.Itoa(sdk.ResultsPerPage))
	params.Set("type", listType(q.List))
	params.Set("sortmethod", sortMethod(q.Order))
	params.Set("return_tags", "true")
	params.Set("return_vote_data", "true")
	params.Set("return_previews", "true")
	for i, tag := range exclude {
		params.Set(fmt.Sprintf("excludedtags[%d]", i), tag)
	}

	body, err := c.do(ctx, http.MethodGet, "/IPublishedFileService/GetUserFiles/v1/", params)
	if err != nil {
		return nil, err
	}

	var resp userFilesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, sdk.NewError(sdk.ResultFail, fmt.Sprintf("failed to parse user files: %v", err))
	}
	return &resp, nil
}

// fetchPersona loads the display name and, if withAvatar, the 64x64 RGBA avatar
func (c *Client) fetchPersona(ctx context.Context, id sdk.SteamID, withAvatar bool) (string, []byte, error) {
	params := url.Values{}
	params.Set("steamids", strconv.FormatUint(uint64(id), 10))

	body, err := c.do(ctx, http.MethodGet, "/ISteamUser/GetPlayerSummaries/v2/", params)
	if err != nil {
		return "", nil, err
	}

	var resp playerSummariesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", nil, fmt.Errorf("failed to parse player summaries: %w", err)
	}
	if len(resp.Response.Players) == 0 {
		return "", nil, fmt.Errorf("player %d not found", uint64(id))
	}
	player := resp.Response.Players[0]

	if !withAvatar || player.AvatarMedium == "" {
		return player.PersonaName, nil, nil
	}

	rgba, err := c.fetchAvatar(ctx, player.AvatarMedium)
	if err != nil {
		// the name is still useful without the picture
		c.logger.Warn("Failed to load avatar", "steamid", uint64(id), "error", err)
		return player.PersonaName, nil, nil
	}
	return player.PersonaName, rgba, nil
}

// fetchAvatar downloads an avatar image and converts it to square RGBA
func (c *Client) fetchAvatar(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to decode avatar: %w", err)
	}
	return toRGBA(img, models.AvatarSize), nil
}

// do performs one rate-limited API call and returns the response body.
// Failures are reported as *sdk.Error so they look like SDK completions.
func (c *Client) do(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, sdk.NewError(sdk.ResultTimeout, fmt.Sprintf("rate limiter: %v", err))
	}

	if c.config.APIKey != "" {
		params.Set("key", c.config.APIKey)
	}
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, sdk.NewError(sdk.ResultInvalidParam, fmt.Sprintf("failed to create HTTP request: %v", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, sdk.NewError(sdk.ResultTimeout, err.Error())
		}
		return nil, sdk.NewError(sdk.ResultNoConnection, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, sdk.NewError(statusResult(resp.StatusCode), fmt.Sprintf("unexpected HTTP status: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, sdk.NewError(sdk.ResultNoConnection, fmt.Sprintf("failed to read response: %v", err))
	}
	return body, nil
}

func statusResult(status int) sdk.Result {
	switch {
	case status == http.StatusTooManyRequests:
		return sdk.ResultRateLimitExceeded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return sdk.ResultAccessDenied
	case status == http.StatusNotFound:
		return sdk.ResultFileNotFound
	case status == http.StatusBadRequest:
		return sdk.ResultInvalidParam
	case status >= 500:
		return sdk.ResultServiceUnavailable
	}
	return sdk.ResultFail
}

func listType(l sdk.UserList) string {
	switch l {
	case sdk.UserListSubscribed:
		return "subscribed"
	case sdk.UserListFavorited:
		return "favorites"
	}
	return "myfiles"
}

func sortMethod(o sdk.UserListOrder) string {
	switch o {
	case sdk.OrderCreationDesc:
		return "creationorder"
	case sdk.OrderTitleAsc:
		return "title"
	case sdk.OrderSubscriptionDateDesc:
		return "subscriptiondate"
	}
	return "lastupdated"
}

// toRGBA scales img to size x size with nearest-neighbour sampling
func toRGBA(img image.Image, size int) []byte {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		dst := image.NewRGBA(image.Rect(0, 0, size, size))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst.Pix
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		sy := b.Min.Y + y*b.Dy()/size
		for x := 0; x < size; x++ {
			sx := b.Min.X + x*b.Dx()/size
			dst.Set(x, y, img.At(sx, sy))
		}
	}
	return dst.Pix
}
