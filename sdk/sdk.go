// Package sdk describes the surface of the Workshop client SDK that the query
// façade depends on. The SDK is asynchronous: queries complete by invoking a
// callback, and callbacks only ever run from inside Pump.RunCallbacks.
package sdk

import (
	"strconv"
)

// PublishedFileID identifies a Workshop item
type PublishedFileID uint64

// String returns the decimal form of the id
func (id PublishedFileID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// SteamID is a 64-bit account identifier
type SteamID uint64

// AccountID returns the low 32 bits of the SteamID
func (id SteamID) AccountID() AccountID {
	return AccountID(uint32(id))
}

// AccountID is the 32-bit account part of a SteamID
type AccountID uint32

// individualBase is the SteamID of account 0 in the public universe
const individualBase SteamID = 76561197960265728

// SteamID returns the individual public-universe SteamID for the account
func (a AccountID) SteamID() SteamID {
	return individualBase + SteamID(a)
}

// AppID identifies an application on the platform
type AppID uint32

// UserList selects which of a user's item lists a query enumerates
type UserList int

const (
	UserListPublished UserList = iota
	UserListSubscribed
	UserListFavorited
)

// UGCType filters the kind of content a user query returns
type UGCType int

const (
	UGCItemsReadyToUse UGCType = iota
	UGCItems
	UGCAll
)

// UserListOrder sorts a user query
type UserListOrder int

const (
	OrderLastUpdatedDesc UserListOrder = iota
	OrderCreationDesc
	OrderTitleAsc
	OrderSubscriptionDateDesc
)

// StatisticType names a per-item counter
type StatisticType int

const (
	StatSubscriptions StatisticType = iota
	StatFavorites
	StatUniqueWebsiteViews
)

// ResultsPerPage is the fixed page size of user queries
const ResultsPerPage = 50

// QueryResult is a single catalog entry as returned by a query
type QueryResult struct {
	PublishedFileID PublishedFileID
	Title           string
	Description     string
	Owner           SteamID
	TimeCreated     uint32
	TimeUpdated     uint32
	Score           float32
	Tags            []string
	FileSize        uint64
}

// QueryResults is the data handed to a completion callback.
// It is only valid for the duration of the callback.
type QueryResults interface {
	// TotalResults is the total number of matches across all pages
	TotalResults() uint32

	// ReturnedResults is the number of slots in this response
	ReturnedResults() uint32

	// Get returns the result at index, or false if the slot is empty
	Get(index uint32) (*QueryResult, bool)

	// Results returns one entry per returned slot; nil marks an item the
	// catalog could not resolve
	Results() []*QueryResult

	// PreviewURL returns the preview image URL for the result at index
	PreviewURL(index uint32) (string, bool)

	// Statistic returns a counter for the result at index
	Statistic(index uint32, stat StatisticType) (uint64, bool)
}

// FetchCallback receives either results or an SDK error
type FetchCallback func(results QueryResults, err error)

// Query is a built but not yet submitted catalog request
type Query interface {
	// ExcludeTag removes items carrying tag from the results
	ExcludeTag(tag string) Query

	// Fetch submits the query. cb runs exactly once, from RunCallbacks.
	Fetch(cb FetchCallback)
}

// UserQuery describes an enumeration of one user's items
type UserQuery struct {
	Account AccountID
	List    UserList
	Type    UGCType
	Order   UserListOrder
	AppID   AppID
	Page    uint32
}

// UGC builds catalog queries. Construction fails synchronously with
// ErrCreateQuery when the request is malformed.
type UGC interface {
	QueryItem(id PublishedFileID) (Query, error)
	QueryItems(ids []PublishedFileID) (Query, error)
	QueryUser(q UserQuery) (Query, error)
}

// User exposes the signed-in user
type User interface {
	SteamID() SteamID
}

// Friends exposes locally resident persona data
type Friends interface {
	// Name is the signed-in user's persona name
	Name() string

	// MediumAvatar returns 64x64 RGBA pixels for a user if loaded
	MediumAvatar(id SteamID) ([]byte, bool)

	// RequestUserInformation asks the SDK to load persona data for a user.
	// It reports whether a request was started.
	RequestUserInformation(id SteamID, nameOnly bool) bool
}

// Apps exposes installed application state
type Apps interface {
	IsAppInstalled(app AppID) bool
	AppInstallDir(app AppID) string
}

// Client is an initialized SDK session
type Client interface {
	UGC() UGC
	User() User
	Friends() Friends
	Apps() Apps
}

// Pump services the SDK callback queue. It is not safe for concurrent use.
type Pump interface {
	RunCallbacks()
}
