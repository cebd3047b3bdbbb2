// Package spotify wraps the Spotify Web API client library with the helpers
// used by the web application: reading the signed-in user's playlists and
// tracks, fetching audio features and writing a new playlist. Two clients are
// built from the same type. NewUserClient acts on behalf of a user who has
// completed the OAuth flow; NewAppClient uses the client credentials flow and
// is only used for catalog lookups such as audio features.
//
// The wrapped library does not accept a context, so cancellation is checked
// before each call and between retries.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"Camelot-Organizer-Go/pkg/music"
)

const (
	// MaxBatch is the provider limit for track IDs or URIs in one request.
	MaxBatch = 100

	playlistPageSize = 50
	trackPageSize    = 100
	featureWorkers   = 4
)

// Scopes are requested during login. Reading covers private and
// collaborative playlists; modifying is needed to write the organized copy.
var Scopes = []string{
	spotify.ScopePlaylistReadPrivate,
	spotify.ScopePlaylistReadCollaborative,
	spotify.ScopePlaylistModifyPublic,
	spotify.ScopePlaylistModifyPrivate,
	spotify.ScopeUserReadPrivate,
	spotify.ScopeUserReadEmail,
}

// api is the subset of spotify.Client used by this package. It allows the
// concrete client to be replaced in tests.
type api interface {
	CurrentUser() (*spotify.PrivateUser, error)
	CurrentUsersPlaylistsOpt(opt *spotify.Options) (*spotify.SimplePlaylistPage, error)
	GetPlaylistTracksOpt(playlistID spotify.ID, opt *spotify.Options, fields string) (*spotify.PlaylistTrackPage, error)
	GetAudioFeatures(ids ...spotify.ID) ([]*spotify.AudioFeatures, error)
	CreatePlaylistForUser(userID, playlistName, description string, public bool) (*spotify.FullPlaylist, error)
	AddTracksToPlaylist(playlistID spotify.ID, trackIDs ...spotify.ID) (string, error)
	GetPlaylist(playlistID spotify.ID) (*spotify.FullPlaylist, error)
}

// Client implements music.Library on top of the Spotify client library.
type Client struct {
	client api
	retry  Retry
}

// Compile-time interface check.
var _ music.Library = (*Client)(nil)

// NewAuthenticator returns the OAuth helper for the authorization code flow.
func NewAuthenticator(redirectURL, clientID, clientSecret string) spotify.Authenticator {
	auth := spotify.NewAuthenticator(redirectURL, Scopes...)
	auth.SetAuthInfo(clientID, clientSecret)
	return auth
}

// Auth adapts spotify.Authenticator for the login handlers. The consent
// dialog is always shown so users can switch accounts after logging out.
type Auth struct {
	spotify.Authenticator
}

// AuthURL returns the authorization URL for state.
func (a Auth) AuthURL(state string) string {
	return a.Authenticator.AuthURLWithDialog(state)
}

// NewUserClient returns a client acting for the owner of token.
func NewUserClient(auth spotify.Authenticator, token *oauth2.Token, retry Retry) *Client {
	c := auth.NewClient(token)
	return &Client{client: &c, retry: retry}
}

// NewAppClient returns a client authenticated with the client credentials
// flow. The token is fetched lazily on the first request and refreshed
// automatically, so construction never touches the network.
func NewAppClient(ctx context.Context, clientID, clientSecret string, retry Retry) *Client {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotify.TokenURL,
	}
	c := spotify.NewClient(config.Client(ctx))
	return &Client{client: &c, retry: retry}
}

// CurrentUser returns the profile of the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (music.User, error) {
	var u *spotify.PrivateUser
	err := c.retry.do(ctx, "current_user", func() (err error) {
		u, err = c.client.CurrentUser()
		return err
	})
	if err != nil {
		return music.User{}, err
	}
	return music.UserFromSpotify(*u), nil
}

// Playlists returns every playlist in the user's library, following pages
// until the reported total is reached.
func (c *Client) Playlists(ctx context.Context) ([]music.Playlist, error) {
	var out []music.Playlist
	limit := playlistPageSize
	for offset := 0; ; offset += limit {
		off := offset
		var page *spotify.SimplePlaylistPage
		err := c.retry.do(ctx, "playlists", func() (err error) {
			page, err = c.client.CurrentUsersPlaylistsOpt(&spotify.Options{Limit: &limit, Offset: &off})
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, p := range page.Playlists {
			out = append(out, music.PlaylistFromSpotify(p))
		}
		if len(page.Playlists) < limit || offset+limit >= page.Total {
			return out, nil
		}
	}
}

// PlaylistTracks returns the tracks of playlistID in playlist order. Items
// without a track ID (removed tracks, local files) are skipped.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]music.Track, error) {
	var out []music.Track
	limit := trackPageSize
	for offset := 0; ; offset += limit {
		off := offset
		var page *spotify.PlaylistTrackPage
		err := c.retry.do(ctx, "playlist_tracks", func() (err error) {
			page, err = c.client.GetPlaylistTracksOpt(spotify.ID(playlistID), &spotify.Options{Limit: &limit, Offset: &off}, "")
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, item := range page.Tracks {
			if item.Track.ID == "" {
				continue
			}
			out = append(out, music.FromSpotify(item.Track))
		}
		if len(page.Tracks) < limit || offset+limit >= page.Total {
			return out, nil
		}
	}
}

// AudioFeatures looks up tempo, key and mode for ids. Requests are split into
// batches of MaxBatch and run concurrently. IDs the provider knows nothing
// about are absent from the result.
func (c *Client) AudioFeatures(ctx context.Context, ids []string) ([]music.Features, error) {
	var batches [][]string
	for start := 0; start < len(ids); start += MaxBatch {
		end := min(start+MaxBatch, len(ids))
		batches = append(batches, ids[start:end])
	}
	results := make([][]*spotify.AudioFeatures, len(batches))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(featureWorkers)
	for i, batch := range batches {
		g.Go(func() error {
			sids := make([]spotify.ID, len(batch))
			for j, id := range batch {
				sids[j] = spotify.ID(id)
			}
			return c.retry.do(ctx, "audio_features", func() (err error) {
				results[i], err = c.client.GetAudioFeatures(sids...)
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []music.Features
	for _, batch := range results {
		for _, f := range batch {
			if f == nil || f.ID == "" {
				continue
			}
			out = append(out, music.Features{
				ID:    string(f.ID),
				Tempo: float64(f.Tempo),
				Key:   f.Key,
				Mode:  f.Mode,
			})
		}
	}
	return out, nil
}

// CreatePlaylist creates a private playlist owned by ownerID and returns its
// ID.
func (c *Client) CreatePlaylist(ctx context.Context, ownerID, name, description string) (string, error) {
	var pl *spotify.FullPlaylist
	err := c.retry.do(ctx, "create_playlist", func() (err error) {
		pl, err = c.client.CreatePlaylistForUser(ownerID, name, description, false)
		return err
	})
	if err != nil {
		return "", err
	}
	return string(pl.ID), nil
}

// AddTracks appends uris to playlistID in a single request. At most MaxBatch
// URIs may be supplied; callers split larger sets.
func (c *Client) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) > MaxBatch {
		return fmt.Errorf("spotify add_tracks: %d uris exceeds batch limit of %d", len(uris), MaxBatch)
	}
	ids := make([]spotify.ID, len(uris))
	for i, uri := range uris {
		id, err := trackID(uri)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	return c.retry.do(ctx, "add_tracks", func() error {
		_, err := c.client.AddTracksToPlaylist(spotify.ID(playlistID), ids...)
		return err
	})
}

// Playlist returns the summary of a single playlist.
func (c *Client) Playlist(ctx context.Context, playlistID string) (music.Playlist, error) {
	var pl *spotify.FullPlaylist
	err := c.retry.do(ctx, "get_playlist", func() (err error) {
		pl, err = c.client.GetPlaylist(spotify.ID(playlistID))
		return err
	})
	if err != nil {
		return music.Playlist{}, err
	}
	p := music.PlaylistFromSpotify(pl.SimplePlaylist)
	p.Description = pl.Description
	p.TrackCount = pl.Tracks.Total
	return p, nil
}

// PlaylistExists re-reads playlistID. A 404 from the provider reports false
// without an error.
func (c *Client) PlaylistExists(ctx context.Context, playlistID string) (bool, error) {
	_, err := c.Playlist(ctx, playlistID)
	if err == nil {
		return true, nil
	}
	if StatusCode(err) == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// trackID extracts the ID from a "spotify:track:<id>" URI.
func trackID(uri string) (spotify.ID, error) {
	const prefix = "spotify:track:"
	if !strings.HasPrefix(uri, prefix) || len(uri) == len(prefix) {
		return "", fmt.Errorf("spotify add_tracks: not a track uri: %q", uri)
	}
	return spotify.ID(strings.TrimPrefix(uri, prefix)), nil
}
