// Spotify implementation of [Adapter]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/fetch"
	"github.com/desertthunder/mtx/internal/library"
	"github.com/desertthunder/mtx/internal/shared"
)

const (
	SpotifyName = "spotify"

	spotifyAuthURL        = "https://accounts.spotify.com/authorize"
	spotifyTokenURL       = "https://accounts.spotify.com/api/token"
	defaultSpotifyBaseURL = "https://api.spotify.com/v1"

	spotifyScope = "playlist-read-private playlist-read-collaborative playlist-modify-private playlist-modify-public " +
		"user-follow-read user-follow-modify user-library-read user-library-modify"

	spotifyBatchLimit = 50
)

// SpotifyCredential returns the static OAuth client settings for the
// registered Spotify application.
func SpotifyCredential(clientID string) auth.Credential {
	return auth.Credential{
		ClientID:              clientID,
		AuthorizationEndpoint: spotifyAuthURL,
		ExchangeEndpoint:      spotifyTokenURL,
		Scope:                 spotifyScope,
	}
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []spotifyArtist `json:"artists"`
	ExternalIDs struct {
		UPC string `json:"upc"`
	} `json:"external_ids"`
}

type spotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	URI         string          `json:"uri"`
	Artists     []spotifyArtist `json:"artists"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

type spotifyFollowedArtistsPage struct {
	Artists struct {
		Items []spotifyArtist `json:"items"`
		Next  *string         `json:"next"`
	} `json:"artists"`
}

type spotifySavedAlbumsPage struct {
	Items []struct {
		Album spotifyAlbum `json:"album"`
	} `json:"items"`
	Next *string `json:"next"`
}

type spotifySavedTracksPage struct {
	Items []struct {
		Track spotifyTrack `json:"track"`
	} `json:"items"`
	Next *string `json:"next"`
}

type spotifyPlaylistsPage struct {
	Items []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      bool   `json:"public"`
	} `json:"items"`
	Next *string `json:"next"`
}

type spotifySearchResponse struct {
	Artists *struct {
		Items []spotifyArtist `json:"items"`
	} `json:"artists"`
	Albums *struct {
		Items []spotifyAlbum `json:"items"`
	} `json:"albums"`
	Tracks *struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

// Spotify implements [Adapter] against the Spotify Web API.
type Spotify struct {
	authorizer *auth.Authorizer
	fetcher    *fetch.Engine
	client     *apiClient
	logger     *log.Logger
	baseURL    string
}

// SpotifyOpts configures a Spotify adapter. BaseURL overrides the API
// root for tests.
type SpotifyOpts struct {
	Authorizer *auth.Authorizer
	Fetcher    *fetch.Engine
	HTTPClient *http.Client
	Logger     *log.Logger
	BaseURL    string
}

// NewSpotify creates a Spotify adapter.
func NewSpotify(opts SpotifyOpts) *Spotify {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultSpotifyBaseURL
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetch.New(fetch.Options{Client: opts.HTTPClient, Logger: opts.Logger})
	}
	return &Spotify{
		authorizer: opts.Authorizer,
		fetcher:    opts.Fetcher,
		client:     newAPIClient(opts.HTTPClient, opts.Authorizer, nil),
		logger:     shared.WithLogger(opts.Logger, "provider", SpotifyName),
		baseURL:    opts.BaseURL,
	}
}

func (s *Spotify) Name() string { return SpotifyName }

func (s *Spotify) Credential() *auth.Credential {
	cred := s.authorizer.Credential()
	return &cred
}

func (s *Spotify) Authenticated() bool { return s.authorizer.Authenticated() }

func (s *Spotify) BatchLimit() int { return spotifyBatchLimit }

// Library assembles the root group: favourite artists, albums and
// tracks plus one child per playlist. Favourites carry lazy pagination
// routines; the root's own routine paginates the playlist list.
func (s *Spotify) Library(ctx context.Context) (*library.Group, error) {
	artists := library.NewLazyGroup(library.KindArtists, "Favourite Artists",
		s.pageRoutine(ctx, s.baseURL+"/me/following?type=artist&limit=50", s.mapFollowedArtists))
	albums := library.NewLazyGroup(library.KindAlbums, "Favourite Albums",
		s.pageRoutine(ctx, s.baseURL+"/me/albums?limit=50", s.mapSavedAlbums))
	tracks := library.NewLazyGroup(library.KindTracks, "Favourite Tracks",
		s.pageRoutine(ctx, s.baseURL+"/me/tracks?limit=50", s.mapSavedTracks))

	return library.NewAll([]*library.Group{artists, albums, tracks}, s.playlistsRoutine(ctx)), nil
}

func (s *Spotify) pageRoutine(ctx context.Context, initialURL string, mapper fetch.Mapper) library.FetchFunc {
	return func(g *library.Group) error {
		return s.fetcher.Fetch(ctx, g, initialURL, s.authorizer, mapper)
	}
}

// playlistsRoutine paginates the user's playlists, adding one lazy
// child group per playlist, and completes the root once the list is
// exhausted. The children's own tracks fetch independently afterward.
func (s *Spotify) playlistsRoutine(ctx context.Context) library.FetchFunc {
	return func(root *library.Group) error {
		err := s.fetcher.Walk(ctx, s.baseURL+"/me/playlists?limit=50", s.authorizer, func(body []byte) (string, error) {
			var page spotifyPlaylistsPage
			if err := json.Unmarshal(body, &page); err != nil {
				return "", err
			}
			for _, pl := range page.Items {
				if pl.ID == "" {
					continue
				}
				tracksURL := fmt.Sprintf("%s/playlists/%s/tracks?limit=100", s.baseURL, pl.ID)
				root.AddChild(library.NewPlaylistGroup(pl.Name, pl.Description, pl.Public,
					s.pageRoutine(ctx, tracksURL, s.mapPlaylistTracks)))
			}
			return deref(page.Next), nil
		})
		if err != nil {
			return err
		}
		root.Complete()
		return nil
	}
}

func (s *Spotify) mapFollowedArtists(body []byte) (fetch.Page, error) {
	var page spotifyFollowedArtistsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return fetch.Page{}, err
	}

	items := make([]library.Item, 0, len(page.Artists.Items))
	for _, artist := range page.Artists.Items {
		if artist.ID == "" {
			continue
		}
		items = append(items, library.NewItem(artist.Name, nil, map[string]string{
			SpotifyName: artist.ID,
		}))
	}
	return fetch.Page{Next: deref(page.Artists.Next), Items: items}, nil
}

func (s *Spotify) mapSavedAlbums(body []byte) (fetch.Page, error) {
	var page spotifySavedAlbumsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return fetch.Page{}, err
	}

	items := make([]library.Item, 0, len(page.Items))
	for _, saved := range page.Items {
		album := saved.Album
		if album.ID == "" {
			continue
		}
		items = append(items, library.NewItem(album.Name, artistNames(album.Artists), map[string]string{
			SpotifyName:   album.ID,
			library.IDUPC: album.ExternalIDs.UPC,
		}))
	}
	return fetch.Page{Next: deref(page.Next), Items: items}, nil
}

func (s *Spotify) mapSavedTracks(body []byte) (fetch.Page, error) {
	var page spotifySavedTracksPage
	if err := json.Unmarshal(body, &page); err != nil {
		return fetch.Page{}, err
	}

	items := make([]library.Item, 0, len(page.Items))
	for _, saved := range page.Items {
		track := saved.Track
		if track.ID == "" {
			continue
		}
		items = append(items, library.NewItem(track.Name, artistNames(track.Artists), map[string]string{
			SpotifyName:    track.ID,
			library.IDISRC: track.ExternalIDs.ISRC,
		}))
	}
	return fetch.Page{Next: deref(page.Next), Items: items}, nil
}

// mapPlaylistTracks stores the track URI rather than the bare id;
// playlist pushes expect URIs.
func (s *Spotify) mapPlaylistTracks(body []byte) (fetch.Page, error) {
	var page spotifySavedTracksPage
	if err := json.Unmarshal(body, &page); err != nil {
		return fetch.Page{}, err
	}

	items := make([]library.Item, 0, len(page.Items))
	for _, entry := range page.Items {
		track := entry.Track
		if track.ID == "" {
			continue
		}
		items = append(items, library.NewItem(track.Name, artistNames(track.Artists), map[string]string{
			SpotifyName:    track.URI,
			library.IDISRC: track.ExternalIDs.ISRC,
		}))
	}
	return fetch.Page{Next: deref(page.Next), Items: items}, nil
}

// Query resolves one item against the Spotify catalog. Artists are
// searched by name and filtered to exact (case-insensitive) matches;
// albums match by UPC and tracks by ISRC. Playlist entries resolve to
// track URIs so they can be pushed into a container directly.
func (s *Spotify) Query(ctx context.Context, kind library.Kind, item library.Item) ([]string, error) {
	switch kind {
	case library.KindArtists:
		var res spotifySearchResponse
		u := fmt.Sprintf("%s/search?limit=50&type=artist&q=%s", s.baseURL, url.QueryEscape("artist:"+item.Name))
		if err := s.client.do(ctx, http.MethodGet, u, nil, &res); err != nil {
			return nil, err
		}
		if res.Artists == nil {
			return nil, nil
		}
		want := shared.NormalizeName(item.Name)
		var ids []string
		for _, artist := range res.Artists.Items {
			if shared.NormalizeName(artist.Name) == want {
				ids = append(ids, artist.ID)
			}
		}
		return ids, nil

	case library.KindAlbums:
		upc, ok := item.Identifier(library.IDUPC)
		if !ok || upc == "" {
			return nil, nil
		}
		var res spotifySearchResponse
		u := fmt.Sprintf("%s/search?limit=1&type=album&q=%s", s.baseURL, url.QueryEscape("upc:"+upc))
		if err := s.client.do(ctx, http.MethodGet, u, nil, &res); err != nil {
			return nil, err
		}
		if res.Albums == nil {
			return nil, nil
		}
		var ids []string
		for _, album := range res.Albums.Items {
			ids = append(ids, album.ID)
		}
		return ids, nil

	case library.KindTracks, library.KindPlaylist:
		isrc, ok := item.Identifier(library.IDISRC)
		if !ok || isrc == "" {
			return nil, nil
		}
		var res spotifySearchResponse
		u := fmt.Sprintf("%s/search?limit=1&type=track&q=%s", s.baseURL, url.QueryEscape("isrc:"+isrc))
		if err := s.client.do(ctx, http.MethodGet, u, nil, &res); err != nil {
			return nil, err
		}
		if res.Tracks == nil {
			return nil, nil
		}
		var ids []string
		for _, track := range res.Tracks.Items {
			if kind == library.KindPlaylist {
				ids = append(ids, track.URI)
			} else {
				ids = append(ids, track.ID)
			}
		}
		return ids, nil

	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownGroupKind, kind)
	}
}

// PushBatch adds one batch of resolved ids to the user's library, or
// one batch of track URIs to a playlist.
func (s *Spotify) PushBatch(ctx context.Context, kind library.Kind, containerID string, ids []string) error {
	switch kind {
	case library.KindArtists:
		return s.client.do(ctx, http.MethodPut, s.baseURL+"/me/following?type=artist", map[string]any{"ids": ids}, nil)
	case library.KindAlbums:
		return s.client.do(ctx, http.MethodPut, s.baseURL+"/me/albums", map[string]any{"ids": ids}, nil)
	case library.KindTracks:
		return s.client.do(ctx, http.MethodPut, s.baseURL+"/me/tracks", map[string]any{"ids": ids}, nil)
	case library.KindPlaylist:
		u := fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, containerID)
		return s.client.do(ctx, http.MethodPost, u, map[string]any{"uris": ids}, nil)
	default:
		return fmt.Errorf("%w: %q", shared.ErrUnknownGroupKind, kind)
	}
}

// CreateContainer creates a playlist under the authenticated user and
// returns its id.
func (s *Spotify) CreateContainer(ctx context.Context, meta ContainerMeta) (string, error) {
	var user struct {
		ID string `json:"id"`
	}
	if err := s.client.do(ctx, http.MethodGet, s.baseURL+"/me", nil, &user); err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	body := map[string]any{
		"name":        meta.Name,
		"description": meta.Description,
		"public":      meta.Open,
	}
	u := fmt.Sprintf("%s/users/%s/playlists", s.baseURL, user.ID)
	if err := s.client.do(ctx, http.MethodPost, u, body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func artistNames(artists []spotifyArtist) []string {
	names := make([]string, 0, len(artists))
	for _, artist := range artists {
		names = append(names, artist.Name)
	}
	return names
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
