// Package music defines the track and playlist data structures shared by the
// rest of the application together with the Library interface describing the
// provider operations the web server depends on. Keeping these types free of
// the Spotify client library lets the organizer and the CLI run without any
// provider at all.
package music

import (
	"context"
	"strings"

	libspotify "github.com/zmb3/spotify"
)

// Image references artwork hosted by the provider.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Artist is a credited performer on a track.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is the album a track was released on.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Track is a playable item together with its optional analysis attributes.
// Tempo is in beats per minute, Key is the semitone index with 0 = C and Mode
// is 0 for minor and 1 for major. A nil attribute means it has not been
// analysed; it is never replaced with a guessed value.
type Track struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMs int      `json:"duration_ms"`
	Tempo      *float64 `json:"tempo,omitempty"`
	Key        *int     `json:"key,omitempty"`
	Mode       *int     `json:"mode,omitempty"`
}

// Analyzed reports whether tempo, key and mode are all present.
func (t Track) Analyzed() bool {
	return t.Tempo != nil && t.Key != nil && t.Mode != nil
}

// WithAnalysis returns a copy of t carrying the supplied analysis values.
func (t Track) WithAnalysis(tempo float64, key, mode int) Track {
	t.Tempo = &tempo
	t.Key = &key
	t.Mode = &mode
	return t
}

// ArtistNames joins the artist names with a comma for display.
func (t Track) ArtistNames() string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// Features is the analysis result for one track.
type Features struct {
	ID    string  `json:"id"`
	Tempo float64 `json:"tempo"`
	Key   int     `json:"key"`
	Mode  int     `json:"mode"`
}

// Playlist summarises a playlist owned or followed by the user.
type Playlist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Owner       string  `json:"owner"`
	Images      []Image `json:"images"`
	TrackCount  int     `json:"track_count"`
}

// User is the signed-in account.
type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Images      []Image `json:"images"`
}

// Library exposes the provider operations needed to load a playlist and write
// the organized copy back. Every method honours ctx for cancellation.
type Library interface {
	CurrentUser(ctx context.Context) (User, error)
	Playlists(ctx context.Context) ([]Playlist, error)
	Playlist(ctx context.Context, playlistID string) (Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error)
	CreatePlaylist(ctx context.Context, ownerID, name, description string) (string, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) error
	PlaylistExists(ctx context.Context, playlistID string) (bool, error)
}

// FromSpotify converts a track returned by the Spotify client. Analysis
// attributes are left unset.
func FromSpotify(ft libspotify.FullTrack) Track {
	t := Track{
		ID:         string(ft.ID),
		URI:        string(ft.URI),
		Name:       ft.Name,
		DurationMs: ft.Duration,
		Album: Album{
			ID:     string(ft.Album.ID),
			Name:   ft.Album.Name,
			Images: imagesFromSpotify(ft.Album.Images),
		},
	}
	for _, a := range ft.Artists {
		t.Artists = append(t.Artists, Artist{ID: string(a.ID), Name: a.Name})
	}
	return t
}

func imagesFromSpotify(in []libspotify.Image) []Image {
	out := make([]Image, len(in))
	for i, img := range in {
		out[i] = Image{URL: img.URL, Width: img.Width, Height: img.Height}
	}
	return out
}

// PlaylistFromSpotify converts a playlist summary returned by the Spotify
// client.
func PlaylistFromSpotify(p libspotify.SimplePlaylist) Playlist {
	return Playlist{
		ID:         string(p.ID),
		Name:       p.Name,
		Owner:      p.Owner.ID,
		Images:     imagesFromSpotify(p.Images),
		TrackCount: int(p.Tracks.Total),
	}
}

// UserFromSpotify converts the current user profile.
func UserFromSpotify(u libspotify.PrivateUser) User {
	return User{ID: u.ID, DisplayName: u.DisplayName, Images: imagesFromSpotify(u.Images)}
}
