// This file holds the endpoints that write an organized playlist back to
// Spotify and list earlier exports.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"Camelot-Organizer-Go/pkg/db"
	"Camelot-Organizer-Go/pkg/export"
	"Camelot-Organizer-Go/pkg/music"
)

const defaultExportsLimit = 20

// exporter returns an Exporter writing through lib and recording to the
// database when one is configured.
func (app *Application) exporter(lib music.Library) *export.Exporter {
	e := &export.Exporter{Library: lib}
	if app.DB != nil {
		e.Recorder = app.DB
	}
	return e
}

// runExport organizes playlistID again and exports the result. The client
// only names the source playlist; the track order is always recomputed on
// the server.
func (app *Application) runExport(r *http.Request, userID string, lib music.Library, playlistID, name string) (export.Result, error) {
	res, err := app.organize(r.Context(), lib, playlistID)
	if err != nil {
		return export.Result{}, err
	}
	return app.exporter(lib).Export(r.Context(), export.Request{
		UserID:           userID,
		SourcePlaylistID: playlistID,
		SourceName:       res.Playlist.Name,
		Name:             name,
		Groups:           res.groups,
	})
}

// ExportJSON creates a new playlist from the organized order of the playlist
// named in the request body.
func (app *Application) ExportJSON(w http.ResponseWriter, r *http.Request) {
	userID, lib, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		PlaylistID string `json:"playlist_id"`
		Name       string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.PlaylistID) == "" {
		respondJSONError(w, http.StatusBadRequest, "playlist_id is required")
		return
	}
	res, err := app.runExport(r, userID, lib, req.PlaylistID, req.Name)
	if err != nil {
		if errors.Is(err, export.ErrNoTracks) {
			respondJSONError(w, http.StatusUnprocessableEntity, "no tracks with tempo and key to export")
			return
		}
		providerError(w, err, "failed to export playlist")
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// Export handles the export form on the organize page.
func (app *Application) Export(w http.ResponseWriter, r *http.Request) {
	userID, err := app.userFromCookie(r)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	token, err := app.tokenFromCookie(r)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if !verifyCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}
	id := strings.TrimSpace(r.PostFormValue("playlist_id"))
	if id == "" {
		http.Error(w, "playlist_id is required", http.StatusBadRequest)
		return
	}
	res, err := app.runExport(r, userID, app.Library(token), id, r.PostFormValue("name"))
	if err != nil {
		if errors.Is(err, export.ErrNoTracks) {
			http.Error(w, "no tracks with tempo and key to export", http.StatusUnprocessableEntity)
			return
		}
		log.WithError(err).WithField("playlist", id).Error("export playlist")
		http.Error(w, "failed to export playlist", http.StatusBadGateway)
		return
	}
	render(w, "exported.html", res)
}

// ExportsJSON lists the signed-in user's previous exports, newest first.
func (app *Application) ExportsJSON(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	if app.DB == nil {
		respondJSONError(w, http.StatusInternalServerError, "db not configured")
		return
	}
	limit := defaultExportsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			respondJSONError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	exports, err := app.DB.ListExports(r.Context(), userID, limit)
	if err != nil {
		log.WithError(err).Error("list exports")
		respondJSONError(w, http.StatusInternalServerError, "failed to load exports")
		return
	}
	if exports == nil {
		exports = []db.Export{}
	}
	respondJSON(w, http.StatusOK, exports)
}
