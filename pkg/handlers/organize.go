// This file holds the endpoints that read the user's library and organize a
// playlist by BPM band and Camelot code.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"Camelot-Organizer-Go/pkg/camelot"
	"Camelot-Organizer-Go/pkg/metrics"
	"Camelot-Organizer-Go/pkg/music"
	"Camelot-Organizer-Go/pkg/organizer"
	"Camelot-Organizer-Go/pkg/spotify"
)

// groupView is an organized group as presented to clients.
type groupView struct {
	BPM        int            `json:"bpm"`
	Band       string         `json:"band"`
	Camelot    camelot.Code   `json:"camelot"`
	Compatible []camelot.Code `json:"compatible"`
	Tracks     []music.Track  `json:"tracks"`
}

type organizeResult struct {
	Playlist music.Playlist    `json:"playlist"`
	Groups   []groupView       `json:"groups"`
	Summary  organizer.Summary `json:"summary"`
	groups   []organizer.Group
}

// organize loads playlistID, analyzes its tracks and groups them.
func (app *Application) organize(ctx context.Context, lib music.Library, playlistID string) (organizeResult, error) {
	pl, err := lib.Playlist(ctx, playlistID)
	if err != nil {
		return organizeResult{}, fmt.Errorf("load playlist: %w", err)
	}
	tracks, err := lib.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return organizeResult{}, fmt.Errorf("load tracks: %w", err)
	}
	analyzed, err := app.Analyzer.Analyze(ctx, tracks)
	if err != nil {
		return organizeResult{}, fmt.Errorf("analyze tracks: %w", err)
	}
	groups := organizer.Organize(analyzed)
	summary := organizer.Summarize(analyzed, groups)

	metrics.OrganizeRuns.Inc()
	metrics.TracksExcluded.Add(float64(summary.Excluded))
	metrics.GroupsProduced.Observe(float64(len(groups)))
	log.WithFields(log.Fields{
		"playlist": playlistID,
		"tracks":   summary.Total,
		"excluded": summary.Excluded,
		"groups":   summary.Groups,
	}).Info("playlist organized")

	res := organizeResult{Playlist: pl, Summary: summary, groups: groups, Groups: make([]groupView, len(groups))}
	for i, g := range groups {
		res.Groups[i] = groupView{
			BPM:        g.BPM,
			Band:       g.Label(),
			Camelot:    g.Camelot,
			Compatible: g.Camelot.Compatible(),
			Tracks:     g.Tracks,
		}
	}
	return res, nil
}

// providerError maps a failed provider call to a response status.
func providerError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, context.Canceled) {
		return
	}
	status := http.StatusBadGateway
	switch spotify.StatusCode(err) {
	case http.StatusUnauthorized:
		status, msg = http.StatusUnauthorized, "spotify rejected the session, please log in again"
	case http.StatusForbidden:
		status = http.StatusForbidden
	case http.StatusNotFound:
		status, msg = http.StatusNotFound, "playlist not found"
	}
	log.WithError(err).WithField("status", status).Error(msg)
	respondJSONError(w, status, msg)
}

func playlistID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("playlist_id"))
	if id == "" {
		return "", errors.New("playlist_id is required")
	}
	return id, nil
}

// MeJSON returns the signed-in user's profile.
func (app *Application) MeJSON(w http.ResponseWriter, r *http.Request) {
	_, lib, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	user, err := lib.CurrentUser(r.Context())
	if err != nil {
		providerError(w, err, "failed to load profile")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// PlaylistsJSON returns every playlist in the user's library.
func (app *Application) PlaylistsJSON(w http.ResponseWriter, r *http.Request) {
	_, lib, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	pls, err := lib.Playlists(r.Context())
	if err != nil {
		providerError(w, err, "failed to load playlists")
		return
	}
	if pls == nil {
		pls = []music.Playlist{}
	}
	respondJSON(w, http.StatusOK, pls)
}

// OrganizeJSON organizes the playlist named by the playlist_id query
// parameter and returns the groups in mixing order.
func (app *Application) OrganizeJSON(w http.ResponseWriter, r *http.Request) {
	_, lib, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	id, err := playlistID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := app.organize(r.Context(), lib, id)
	if err != nil {
		providerError(w, err, "failed to organize playlist")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type organizePage struct {
	organizeResult
	CSRF string
}

// Organize renders the organized playlist with an export form.
func (app *Application) Organize(w http.ResponseWriter, r *http.Request) {
	if _, err := app.userFromCookie(r); err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	token, err := app.tokenFromCookie(r)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	id, err := playlistID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := app.organize(r.Context(), app.Library(token), id)
	if err != nil {
		log.WithError(err).WithField("playlist", id).Error("organize playlist")
		http.Error(w, "failed to organize playlist", http.StatusBadGateway)
		return
	}
	csrf, err := csrfToken(w, r)
	if err != nil {
		http.Error(w, "csrf token", http.StatusInternalServerError)
		return
	}
	render(w, "organize.html", organizePage{organizeResult: res, CSRF: csrf})
}
