// Tidal implementation of [Adapter]
//
// The Tidal v2 API speaks JSON:API: responses carry resource references
// in "data" and the referenced resources in "included", which must be
// resolved by id.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/fetch"
	"github.com/desertthunder/mtx/internal/library"
	"github.com/desertthunder/mtx/internal/shared"
)

const (
	TidalName = "tidal"

	tidalAuthURL        = "https://login.tidal.com/authorize"
	tidalTokenURL       = "https://auth.tidal.com/v1/oauth2/token"
	defaultTidalBaseURL = "https://openapi.tidal.com/v2"

	tidalScope = "collection.read collection.write playlists.read playlists.write"

	tidalBatchLimit = 20
)

// TidalCredential returns the static OAuth client settings for the
// registered Tidal application.
func TidalCredential(clientID string) auth.Credential {
	return auth.Credential{
		ClientID:              clientID,
		AuthorizationEndpoint: tidalAuthURL,
		ExchangeEndpoint:      tidalTokenURL,
		Scope:                 tidalScope,
	}
}

type tidalRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type tidalResource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name        string `json:"name"`
		Title       string `json:"title"`
		Description string `json:"description"`
		ISRC        string `json:"isrc"`
		BarcodeID   string `json:"barcodeId"`
		AccessType  string `json:"accessType"`
	} `json:"attributes"`
	Relationships struct {
		Artists struct {
			Data []tidalRef `json:"data"`
		} `json:"artists"`
		Albums struct {
			Data []tidalRef `json:"data"`
		} `json:"albums"`
		Playlists struct {
			Data []tidalRef `json:"data"`
		} `json:"playlists"`
		Items struct {
			Links struct {
				Self string `json:"self"`
			} `json:"links"`
		} `json:"items"`
	} `json:"relationships"`
}

// displayName returns the human name of a resource; tracks and albums
// carry "title", artists and playlists "name".
func (r tidalResource) displayName() string {
	if r.Attributes.Title != "" {
		return r.Attributes.Title
	}
	return r.Attributes.Name
}

type tidalResourceDoc struct {
	Data     tidalResource   `json:"data"`
	Included []tidalResource `json:"included"`
}

type tidalListDoc struct {
	Data     []tidalRef      `json:"data"`
	Included []tidalResource `json:"included"`
	Links    struct {
		Next string `json:"next"`
	} `json:"links"`
}

// Tidal implements [Adapter] against the Tidal v2 API.
type Tidal struct {
	authorizer *auth.Authorizer
	fetcher    *fetch.Engine
	client     *apiClient
	logger     *log.Logger
	baseURL    string
	country    string
	locale     string

	mu     sync.Mutex
	userID string
}

// TidalOpts configures a Tidal adapter. BaseURL overrides the API root
// for tests; Country and Locale default to US English.
type TidalOpts struct {
	Authorizer *auth.Authorizer
	Fetcher    *fetch.Engine
	HTTPClient *http.Client
	Logger     *log.Logger
	BaseURL    string
	Country    string
	Locale     string
}

// NewTidal creates a Tidal adapter.
func NewTidal(opts TidalOpts) *Tidal {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultTidalBaseURL
	}
	if opts.Country == "" {
		opts.Country = "US"
	}
	if opts.Locale == "" {
		opts.Locale = "en-US"
	}

	header := http.Header{}
	header.Set("Accept", "application/vnd.api+json")

	if opts.Fetcher == nil {
		opts.Fetcher = fetch.New(fetch.Options{Client: opts.HTTPClient, Logger: opts.Logger, Header: header})
	}
	return &Tidal{
		authorizer: opts.Authorizer,
		fetcher:    opts.Fetcher,
		client:     newAPIClient(opts.HTTPClient, opts.Authorizer, header),
		logger:     shared.WithLogger(opts.Logger, "provider", TidalName),
		baseURL:    opts.BaseURL,
		country:    opts.Country,
		locale:     opts.Locale,
	}
}

func (t *Tidal) Name() string { return TidalName }

func (t *Tidal) Credential() *auth.Credential {
	cred := t.authorizer.Credential()
	return &cred
}

func (t *Tidal) Authenticated() bool { return t.authorizer.Authenticated() }

func (t *Tidal) BatchLimit() int { return tidalBatchLimit }

// user fetches and caches the authenticated user's id.
func (t *Tidal) user(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.userID != "" {
		return t.userID, nil
	}

	var doc tidalResourceDoc
	if err := t.client.do(ctx, http.MethodGet, t.baseURL+"/users/me", nil, &doc); err != nil {
		return "", err
	}
	if doc.Data.ID == "" {
		return "", fmt.Errorf("%w: user id missing from users/me", shared.ErrRequestFailed)
	}
	t.userID = doc.Data.ID
	return t.userID, nil
}

// Library fetches the user collection in one request and assembles the
// root group. Favourite artists and albums arrive inline; playlists
// become lazy children walking their item relationship links.
func (t *Tidal) Library(ctx context.Context) (*library.Group, error) {
	userID, err := t.user(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/userCollections/%s?locale=%s&countryCode=%s&include=playlists&include=artists&include=albums&include=albums.artists",
		t.baseURL, userID, url.QueryEscape(t.locale), t.country)

	var doc tidalResourceDoc
	if err := t.client.do(ctx, http.MethodGet, u, nil, &doc); err != nil {
		return nil, err
	}
	info := indexResources(doc.Included)

	var artistItems []library.Item
	for _, ref := range doc.Data.Relationships.Artists.Data {
		res, ok := info[ref.ID]
		if !ok {
			continue
		}
		artistItems = append(artistItems, library.NewItem(res.displayName(), nil, map[string]string{
			TidalName: ref.ID,
		}))
	}

	var albumItems []library.Item
	for _, ref := range doc.Data.Relationships.Albums.Data {
		res, ok := info[ref.ID]
		if !ok {
			continue
		}
		albumItems = append(albumItems, library.NewItem(res.displayName(), t.resolveArtists(info, res), map[string]string{
			TidalName:     ref.ID,
			library.IDUPC: res.Attributes.BarcodeID,
		}))
	}

	children := []*library.Group{
		library.NewGroup(library.KindArtists, "Favourite Artists", artistItems),
		library.NewGroup(library.KindAlbums, "Favourite Albums", albumItems),
	}

	for _, ref := range doc.Data.Relationships.Playlists.Data {
		res, ok := info[ref.ID]
		if !ok {
			continue
		}
		itemsURL := res.Relationships.Items.Links.Self
		children = append(children, library.NewPlaylistGroup(
			res.displayName(),
			res.Attributes.Description,
			res.Attributes.AccessType == "PUBLIC",
			t.playlistRoutine(ctx, itemsURL),
		))
	}

	return library.NewAll(children, nil), nil
}

func (t *Tidal) playlistRoutine(ctx context.Context, itemsURL string) library.FetchFunc {
	return func(g *library.Group) error {
		initial := appendParam(t.apiURL(itemsURL), "include=items.artists")
		return t.fetcher.Fetch(ctx, g, initial, t.authorizer, t.mapPlaylistItems)
	}
}

func (t *Tidal) mapPlaylistItems(body []byte) (fetch.Page, error) {
	var doc tidalListDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return fetch.Page{}, err
	}
	info := indexResources(doc.Included)

	items := make([]library.Item, 0, len(doc.Data))
	for _, ref := range doc.Data {
		res, ok := info[ref.ID]
		if !ok {
			continue
		}
		items = append(items, library.NewItem(res.displayName(), t.resolveArtists(info, res), map[string]string{
			TidalName:      ref.ID,
			library.IDISRC: res.Attributes.ISRC,
		}))
	}

	next := ""
	if doc.Links.Next != "" {
		next = appendParam(t.apiURL(doc.Links.Next), "include=items.artists")
	}
	return fetch.Page{Next: next, Items: items}, nil
}

// Query resolves tracks and playlist entries by ISRC filter, albums by
// barcode, and artists through search results matched on exact name.
func (t *Tidal) Query(ctx context.Context, kind library.Kind, item library.Item) ([]string, error) {
	switch kind {
	case library.KindTracks, library.KindPlaylist:
		isrc, ok := item.Identifier(library.IDISRC)
		if !ok || isrc == "" {
			return nil, nil
		}
		u := fmt.Sprintf("%s/tracks?countryCode=%s&filter%%5Bisrc%%5D=%s", t.baseURL, t.country, url.QueryEscape(isrc))
		return t.queryRefs(ctx, u)

	case library.KindAlbums:
		upc, ok := item.Identifier(library.IDUPC)
		if !ok || upc == "" {
			return nil, nil
		}
		u := fmt.Sprintf("%s/albums?countryCode=%s&filter%%5BbarcodeId%%5D=%s", t.baseURL, t.country, url.QueryEscape(upc))
		return t.queryRefs(ctx, u)

	case library.KindArtists:
		u := fmt.Sprintf("%s/searchresults/%s?countryCode=%s&include=artists", t.baseURL, url.PathEscape(item.Name), t.country)
		var doc tidalResourceDoc
		if err := t.client.do(ctx, http.MethodGet, u, nil, &doc); err != nil {
			return nil, err
		}
		want := shared.NormalizeName(item.Name)
		var ids []string
		for _, res := range doc.Included {
			if res.Type != "artists" {
				continue
			}
			if shared.NormalizeName(res.displayName()) == want {
				ids = append(ids, res.ID)
			}
		}
		return ids, nil

	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownGroupKind, kind)
	}
}

func (t *Tidal) queryRefs(ctx context.Context, u string) ([]string, error) {
	var doc tidalListDoc
	if err := t.client.do(ctx, http.MethodGet, u, nil, &doc); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(doc.Data))
	for _, ref := range doc.Data {
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// PushBatch posts one batch of resource references, either onto the
// user collection relationships (favourites) or onto a playlist's item
// relationship.
func (t *Tidal) PushBatch(ctx context.Context, kind library.Kind, containerID string, ids []string) error {
	switch kind {
	case library.KindArtists, library.KindAlbums, library.KindTracks:
		userID, err := t.user(ctx)
		if err != nil {
			return err
		}
		u := fmt.Sprintf("%s/userCollections/%s/relationships/%s?countryCode=%s", t.baseURL, userID, kind, t.country)
		return t.client.do(ctx, http.MethodPost, u, map[string]any{"data": refsOf(string(kind), ids)}, nil)

	case library.KindPlaylist:
		u := fmt.Sprintf("%s/playlists/%s/relationships/items?countryCode=%s", t.baseURL, containerID, t.country)
		return t.client.do(ctx, http.MethodPost, u, map[string]any{"data": refsOf("tracks", ids)}, nil)

	default:
		return fmt.Errorf("%w: %q", shared.ErrUnknownGroupKind, kind)
	}
}

// CreateContainer creates a playlist and returns its id.
func (t *Tidal) CreateContainer(ctx context.Context, meta ContainerMeta) (string, error) {
	access := "PRIVATE"
	if meta.Open {
		access = "PUBLIC"
	}
	body := map[string]any{
		"data": map[string]any{
			"type": "playlists",
			"attributes": map[string]any{
				"name":        meta.Name,
				"description": meta.Description,
				"accessType":  access,
			},
		},
	}

	var doc tidalResourceDoc
	u := fmt.Sprintf("%s/playlists?countryCode=%s", t.baseURL, t.country)
	if err := t.client.do(ctx, http.MethodPost, u, body, &doc); err != nil {
		return "", err
	}
	if doc.Data.ID == "" {
		return "", fmt.Errorf("%w: playlist id missing from response", shared.ErrRequestFailed)
	}
	return doc.Data.ID, nil
}

func (t *Tidal) resolveArtists(info map[string]tidalResource, res tidalResource) []string {
	names := make([]string, 0, len(res.Relationships.Artists.Data))
	for _, ref := range res.Relationships.Artists.Data {
		if artist, ok := info[ref.ID]; ok {
			names = append(names, artist.displayName())
		}
	}
	return names
}

// apiURL resolves relationship links, which the API returns relative to
// its root.
func (t *Tidal) apiURL(link string) string {
	if link == "" || strings.HasPrefix(link, "http") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return t.baseURL + link
}

func appendParam(u, param string) string {
	if u == "" {
		return u
	}
	if strings.Contains(u, "?") {
		return u + "&" + param
	}
	return u + "?" + param
}

func indexResources(resources []tidalResource) map[string]tidalResource {
	info := make(map[string]tidalResource, len(resources))
	for _, res := range resources {
		info[res.ID] = res
	}
	return info
}

func refsOf(resourceType string, ids []string) []tidalRef {
	refs := make([]tidalRef, len(ids))
	for i, id := range ids {
		refs[i] = tidalRef{ID: id, Type: resourceType}
	}
	return refs
}
