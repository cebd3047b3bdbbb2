// This file defines the Application type holding handler dependencies, the
// route table and the HTML page handlers.
package handlers

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"Camelot-Organizer-Go/pkg/analysis"
	"Camelot-Organizer-Go/pkg/camelot"
	"Camelot-Organizer-Go/pkg/db"
	"Camelot-Organizer-Go/pkg/metrics"
	"Camelot-Organizer-Go/pkg/music"
)

//go:embed templates/*.html static
var assets embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"bpm": func(t *float64) string {
		if t == nil {
			return "-"
		}
		return fmt.Sprint(camelot.RoundBPM(*t))
	},
	"keyname": func(key, mode *int) string {
		if key == nil || mode == nil {
			return "-"
		}
		if name, ok := camelot.KeyName(*key, *mode); ok {
			return name
		}
		return "-"
	},
	"duration": func(ms int) string {
		d := time.Duration(ms) * time.Millisecond
		return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
	},
}).ParseFS(assets, "templates/*.html"))

// Authenticator runs the OAuth authorization code flow.
type Authenticator interface {
	AuthURL(state string) string
	Token(state string, r *http.Request) (*oauth2.Token, error)
}

// Application bundles the dependencies used by the HTTP handlers.
type Application struct {
	Auth Authenticator
	// Library returns a provider client acting for the owner of token.
	Library  func(token *oauth2.Token) music.Library
	Analyzer analysis.Analyzer
	DB       *db.DB
	SignKey  []byte
}

// Routes returns the application's handler with every route instrumented
// and wrapped in SecurityHeaders.
func (app *Application) Routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern, route string, h http.HandlerFunc) {
		mux.Handle(pattern, metrics.Instrument(route, h))
	}
	handle("GET /{$}", "/", app.Home)
	handle("GET /organize", "/organize", app.Organize)
	handle("POST /export", "/export", app.Export)
	handle("GET /login", "/login", app.Login)
	handle("GET /callback", "/callback", app.OAuthCallback)
	handle("GET /logout", "/logout", app.Logout)
	handle("GET /api/me", "/api/me", app.MeJSON)
	handle("GET /api/playlists", "/api/playlists", app.PlaylistsJSON)
	handle("GET /api/organize", "/api/organize", app.OrganizeJSON)
	handle("POST /api/export", "/api/export", app.ExportJSON)
	handle("GET /api/exports", "/api/exports", app.ExportsJSON)
	handle("GET /healthz", "/healthz", app.Healthz)
	mux.Handle("GET /metrics", metrics.Handler())
	static, _ := fs.Sub(assets, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	return SecurityHeaders(mux)
}

// render executes the named template into a buffer first so a failing
// template never leaves a half written page.
func render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.WithError(err).WithField("template", name).Error("render template")
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

type homePage struct {
	User      *music.User
	Playlists []music.Playlist
	Exports   []db.Export
	Error     string
}

// Home shows a login link to anonymous visitors and the playlist picker to
// signed-in users.
func (app *Application) Home(w http.ResponseWriter, r *http.Request) {
	var page homePage
	if r.URL.Query().Get("error") != "" {
		page.Error = "Spotify login was cancelled."
	}
	userID, err := app.userFromCookie(r)
	if err != nil {
		render(w, "home.html", page)
		return
	}
	token, err := app.tokenFromCookie(r)
	if err != nil {
		page.Error = "Your session has expired. Please log in again."
		render(w, "home.html", page)
		return
	}
	lib := app.Library(token)
	user, err := lib.CurrentUser(r.Context())
	if err != nil {
		log.WithError(err).WithField("user", userID).Warn("load profile")
		page.Error = "Could not reach Spotify. Please log in again."
		render(w, "home.html", page)
		return
	}
	page.User = &user
	if page.Playlists, err = lib.Playlists(r.Context()); err != nil {
		log.WithError(err).WithField("user", userID).Warn("load playlists")
		page.Error = "Could not load your playlists."
	}
	if app.DB != nil {
		if page.Exports, err = app.DB.ListExports(r.Context(), userID, 5); err != nil {
			log.WithError(err).Warn("list exports")
		}
	}
	render(w, "home.html", page)
}

// Healthz reports whether the database is reachable.
func (app *Application) Healthz(w http.ResponseWriter, r *http.Request) {
	if app.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.DB.PingContext(ctx); err != nil {
			log.WithError(err).Error("health check")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
