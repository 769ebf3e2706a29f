// Package rest exposes the recommendation engine over HTTP.
package rest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"

	"github.com/pacebox/pacebox/internal/app/catalog"
	"github.com/pacebox/pacebox/internal/app/ranking"
	"github.com/pacebox/pacebox/internal/app/session"
	"github.com/pacebox/pacebox/internal/app/session/state"
	"github.com/pacebox/pacebox/internal/domain/track"
	"github.com/pacebox/pacebox/internal/infra/metrics"
	"github.com/pacebox/pacebox/internal/infra/spotify"
)

// Handler serves the engine's HTTP API.
type Handler struct {
	manager *session.Manager
}

// NewHandler creates an HTTP handler over the given session manager.
func NewHandler(manager *session.Manager) *Handler {
	return &Handler{manager: manager}
}

// Router builds the chi router with all routes mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/session", h.createSession)
		r.Delete("/session", h.deleteSession)
		r.Get("/profile", h.profile)
		r.Post("/recommendations", h.recommend)
		r.Post("/recommendations/next", h.nextPage)
	})

	return r
}

type sessionRequest struct {
	AccessToken string `json:"access_token"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
}

type profileResponse struct {
	TopTracks    []trackView  `json:"top_tracks"`
	TopArtists   []artistView `json:"top_artists"`
	AverageTempo int          `json:"average_tempo"`
}

type recommendRequest struct {
	TargetBPM string `json:"target_bpm"`
}

type recommendResponse struct {
	TargetBPM float64 `json:"target_bpm"`
	Ranked    int     `json:"ranked"`
}

type pageResponse struct {
	Exhausted bool              `json:"exhausted"`
	Entries   []rankedEntryView `json:"entries,omitempty"`
}

type trackView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Artists     string `json:"artists"`
	Album       string `json:"album,omitempty"`
	AlbumArtURL string `json:"album_art_url,omitempty"`
}

type artistView struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres,omitempty"`
}

type rankedEntryView struct {
	trackView
	Tempo    string `json:"tempo"`
	Distance string `json:"distance"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "access_token is required")
		return
	}

	h.manager.BeginLogin()
	if err := h.manager.CompleteLogin(r.Context(), req.AccessToken); err != nil {
		// A profile fetch failure still leaves the session logged in; only a
		// rejected token rolls the phase back.
		if h.manager.Phase() != state.PhaseLoggedIn {
			h.manager.FailLogin()
			writeEngineError(w, err)
			return
		}
		zlog.Warn().Err(err).Msg("profile load failed after login")
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: h.manager.SessionID(),
		Phase:     h.manager.Phase().String(),
	})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	h.manager.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	if h.manager.Phase() != state.PhaseLoggedIn {
		writeError(w, http.StatusUnauthorized, session.ErrNotLoggedIn.Error())
		return
	}

	profile := h.manager.Profile()
	if profile == nil {
		if err := h.manager.RefreshProfile(r.Context()); err != nil {
			writeEngineError(w, err)
			return
		}
		profile = h.manager.Profile()
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ranked, err := h.manager.SubmitTarget(r.Context(), req.TargetBPM)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recommendResponse{
		TargetBPM: h.manager.TargetBPM(),
		Ranked:    len(ranked),
	})
}

func (h *Handler) nextPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.manager.NextPage()
	if err != nil {
		// Exhaustion is a pass-complete signal, not a failure. The cursor has
		// already been rewound.
		if errors.Is(err, ranking.ErrExhausted) {
			writeJSON(w, http.StatusOK, pageResponse{Exhausted: true})
			return
		}
		writeEngineError(w, err)
		return
	}

	entries := make([]rankedEntryView, len(page))
	for i, e := range page {
		entries[i] = toRankedEntryView(e)
	}
	writeJSON(w, http.StatusOK, pageResponse{Entries: entries})
}

// writeEngineError maps engine errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotLoggedIn):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ranking.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, spotify.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, spotify.ErrCatalogUnavailable), errors.Is(err, spotify.ErrNoAudioFeatures):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		zlog.Error().Err(err).Msg("unhandled engine error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func toProfileResponse(p *catalog.Profile) profileResponse {
	resp := profileResponse{
		TopTracks:    make([]trackView, len(p.TopTracks)),
		TopArtists:   make([]artistView, len(p.TopArtists)),
		AverageTempo: p.AverageTempo,
	}
	for i, t := range p.TopTracks {
		resp.TopTracks[i] = toTrackView(t)
	}
	for i, a := range p.TopArtists {
		resp.TopArtists[i] = artistView{ID: a.ID, Name: a.Name, Genres: a.Genres}
	}
	return resp
}

func toTrackView(t track.Track) trackView {
	return trackView{
		ID:          t.ID,
		Name:        t.Name,
		Artists:     t.ArtistLine(),
		Album:       t.Album,
		AlbumArtURL: t.AlbumArtURL,
	}
}

// toRankedEntryView renders tempo and distance with two decimals.
func toRankedEntryView(e track.RankedEntry) rankedEntryView {
	v := rankedEntryView{
		trackView: toTrackView(e.Track),
		Distance:  fmt.Sprintf("%.2f", e.Distance),
	}
	if e.Track.HasFeature() {
		v.Tempo = fmt.Sprintf("%.2f", e.Track.Feature.Tempo)
	}
	return v
}
