// Package httpapi exposes the tracker over HTTP: entity management, score
// entry, game import/export, and the live-session broker endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/justinlawrence/disc-golf-tracker/internal/app/scorecard"
	"github.com/justinlawrence/disc-golf-tracker/internal/domain"
	"github.com/justinlawrence/disc-golf-tracker/internal/exports"
	"github.com/justinlawrence/disc-golf-tracker/internal/merge"
	"github.com/justinlawrence/disc-golf-tracker/internal/relay"
	"github.com/justinlawrence/disc-golf-tracker/internal/snapshot"
	"github.com/justinlawrence/disc-golf-tracker/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler wires HTTP routes to the domain services.
type Handler struct {
	svc      *scorecard.Service
	engine   *merge.Engine
	hub      *relay.Hub
	exporter *exports.Writer
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(svc *scorecard.Service, engine *merge.Engine, hub *relay.Hub, exporter *exports.Writer, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		engine:   engine,
		hub:      hub,
		exporter: exporter,
		logger:   logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	path := r.URL.Path
	switch {
	case path == "/health":
		h.Health(w, r)
	case path == "/ready":
		h.Ready(w, r)
	case path == "/players":
		h.Players(w, r)
	case strings.HasPrefix(path, "/players/"):
		h.PlayerByID(w, r)
	case path == "/courses":
		h.Courses(w, r)
	case strings.HasPrefix(path, "/courses/"):
		h.CourseByID(w, r)
	case path == "/games":
		h.Games(w, r)
	case strings.HasPrefix(path, "/games/"):
		h.GameByID(w, r)
	case path == "/imports":
		h.Import(w, r)
	case strings.HasPrefix(path, "/sessions/"):
		h.Sessions(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "not found", h.logger)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// Ready reports readiness for traffic, which here means the store answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
		return
	}
	if _, err := h.svc.Courses(); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "store unavailable", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, h.logger)
}

type createPlayerRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *Handler) Players(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		players, err := h.svc.Players()
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "listing players failed", h.logger)
			return
		}
		writeJSON(w, http.StatusOK, players, h.logger)
	case http.MethodPost:
		var req createPlayerRequest
		if !decodeBody(w, r, &req, h.logger) {
			return
		}
		player, err := h.svc.CreatePlayer(req.Name, req.Color)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error(), h.logger)
			return
		}
		writeJSON(w, http.StatusCreated, player, h.logger)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
	}
}

func (h *Handler) PlayerByID(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r.URL.Path, "/players/")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "invalid player id", h.logger)
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
		return
	}
	if err := h.svc.DeletePlayer(id); err != nil {
		writeError(w, r, http.StatusInternalServerError, "deleting player failed", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createCourseRequest struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Holes     []struct {
		Number   int    `json:"number"`
		Par      string `json:"par"`
		Distance string `json:"distance"`
	} `json:"holes"`
}

type courseResponse struct {
	Course  domain.Course   `json:"course"`
	Baskets []domain.Basket `json:"baskets"`
}

func (h *Handler) Courses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		courses, err := h.svc.Courses()
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "listing courses failed", h.logger)
			return
		}
		writeJSON(w, http.StatusOK, courses, h.logger)
	case http.MethodPost:
		var req createCourseRequest
		if !decodeBody(w, r, &req, h.logger) {
			return
		}
		holes := make([]scorecard.HoleSpec, 0, len(req.Holes))
		for _, hole := range req.Holes {
			holes = append(holes, scorecard.HoleSpec{
				Number:   hole.Number,
				Par:      hole.Par,
				Distance: hole.Distance,
			})
		}
		course, baskets, err := h.svc.CreateCourse(req.Name, req.Latitude, req.Longitude, holes)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error(), h.logger)
			return
		}
		writeJSON(w, http.StatusCreated, courseResponse{Course: course, Baskets: baskets}, h.logger)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
	}
}

type bestRoundResponse struct {
	Score  int            `json:"score"`
	Date   string         `json:"date"`
	Player *domain.Player `json:"player,omitempty"`
}

func (h *Handler) CourseByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/courses/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "invalid course id", h.logger)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodDelete:
		if err := h.svc.DeleteCourse(id); err != nil {
			writeError(w, r, http.StatusInternalServerError, "deleting course failed", h.logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case sub == "best-round" && r.Method == http.MethodGet:
		best, ok, err := h.svc.BestRound(id)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "loading best round failed", h.logger)
			return
		}
		if !ok {
			writeError(w, r, http.StatusNotFound, "no finished rounds yet", h.logger)
			return
		}
		writeJSON(w, http.StatusOK, bestRoundResponse{
			Score:  best.Score,
			Date:   snapshot.FormatDate(best.Date),
			Player: best.Player,
		}, h.logger)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
	}
}

type startGameRequest struct {
	CourseID  string   `json:"courseId"`
	PlayerIDs []string `json:"playerIds"`
}

func (h *Handler) Games(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
		return
	}
	var req startGameRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	game, err := h.svc.StartGame(req.CourseID, req.PlayerIDs)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error(), h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, game, h.logger)
}

type scoreRequest struct {
	BasketID string `json:"basketId"`
	PlayerID string `json:"playerId"`
	Op       string `json:"op"`
}

type scoreResponse struct {
	Score int `json:"score"`
}

type currentHoleRequest struct {
	Index int `json:"index"`
}

func (h *Handler) GameByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/games/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "invalid game id", h.logger)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		card, err := h.svc.Scorecard(id)
		if err != nil {
			writeError(w, r, statusFor(err), err.Error(), h.logger)
			return
		}
		writeJSON(w, http.StatusOK, card, h.logger)
	case sub == "" && r.Method == http.MethodDelete:
		if err := h.svc.DeleteGame(id); err != nil {
			writeError(w, r, http.StatusInternalServerError, "deleting game failed", h.logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case sub == "scores" && r.Method == http.MethodPost:
		var req scoreRequest
		if !decodeBody(w, r, &req, h.logger) {
			return
		}
		var (
			value int
			err   error
		)
		switch req.Op {
		case "increment", "":
			value, err = h.svc.IncrementScore(r.Context(), id, req.BasketID, req.PlayerID)
		case "decrement":
			value, err = h.svc.DecrementScore(r.Context(), id, req.BasketID, req.PlayerID)
		default:
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown op %q", req.Op), h.logger)
			return
		}
		if err != nil {
			writeError(w, r, statusFor(err), err.Error(), h.logger)
			return
		}
		writeJSON(w, http.StatusOK, scoreResponse{Score: value}, h.logger)
	case sub == "hole" && r.Method == http.MethodPut:
		var req currentHoleRequest
		if !decodeBody(w, r, &req, h.logger) {
			return
		}
		if err := h.svc.SetCurrentHole(r.Context(), id, req.Index); err != nil {
			writeError(w, r, statusFor(err), err.Error(), h.logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case sub == "finish" && r.Method == http.MethodPost:
		game, err := h.svc.FinishGame(r.Context(), id)
		if err != nil {
			writeError(w, r, statusFor(err), err.Error(), h.logger)
			return
		}
		writeJSON(w, http.StatusOK, game, h.logger)
	case sub == "snapshot" && r.Method == http.MethodGet:
		snap, err := h.svc.Snapshot(id)
		if err != nil {
			writeError(w, r, statusFor(err), err.Error(), h.logger)
			return
		}
		writeJSON(w, http.StatusOK, snap, h.logger)
	case sub == "export" && r.Method == http.MethodPost:
		if h.exporter == nil {
			writeError(w, r, http.StatusNotImplemented, "exports not configured", h.logger)
			return
		}
		snap, err := h.svc.Snapshot(id)
		if err != nil {
			writeError(w, r, statusFor(err), err.Error(), h.logger)
			return
		}
		path, err := h.exporter.Write(snap)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "writing export failed", h.logger)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"path": path}, h.logger)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
	}
}

type importResponse struct {
	GameID  string `json:"gameId"`
	Created bool   `json:"created"`
}

// Import accepts a shared-game payload, the same JSON carried by .game
// files. Player identities can be redirected with repeated
// remap=<from>:<to> query parameters before the merge runs.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
		return
	}
	var snap snapshot.SharedGame
	if !decodeBody(w, r, &snap, h.logger) {
		return
	}
	if snap.UUID == "" || snap.CourseID == "" {
		writeError(w, r, http.StatusBadRequest, "unrecognized game payload", h.logger)
		return
	}
	for _, pair := range r.URL.Query()["remap"] {
		from, to, ok := strings.Cut(pair, ":")
		if !ok || from == "" || to == "" {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid remap %q", pair), h.logger)
			return
		}
		merge.RemapPlayer(&snap, from, to)
	}

	game, created, err := h.engine.Import(snap)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "import failed", h.logger)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, importResponse{GameID: game.UUID, Created: created}, h.logger)
}

type joinSessionResponse struct {
	SubscriberID int `json:"subscriberId"`
}

// Sessions covers the broker surface:
//
//	POST   /sessions/{id}/subscribers            join, returns subscriber id
//	DELETE /sessions/{id}/subscribers/{n}        leave
//	POST   /sessions/{id}/messages?subscriber=n  publish a snapshot
//	GET    /sessions/{id}/messages?subscriber=n  long-poll for the next one
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, r, http.StatusNotImplemented, "sessions not configured", h.logger)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	session, sub, _ := strings.Cut(rest, "/")
	if session == "" {
		writeError(w, r, http.StatusBadRequest, "invalid session id", h.logger)
		return
	}

	switch {
	case sub == "subscribers" && r.Method == http.MethodPost:
		member := h.hub.Join(session)
		writeJSON(w, http.StatusCreated, joinSessionResponse{SubscriberID: member.ID()}, h.logger)
	case strings.HasPrefix(sub, "subscribers/") && r.Method == http.MethodDelete:
		id, err := strconv.Atoi(strings.TrimPrefix(sub, "subscribers/"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid subscriber id", h.logger)
			return
		}
		member, ok := h.hub.Subscriber(session, id)
		if !ok {
			writeError(w, r, http.StatusNotFound, "unknown subscriber", h.logger)
			return
		}
		member.Close()
		w.WriteHeader(http.StatusNoContent)
	case sub == "messages":
		h.sessionMessages(w, r, session)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
	}
}

func (h *Handler) sessionMessages(w http.ResponseWriter, r *http.Request, session string) {
	id, err := strconv.Atoi(r.URL.Query().Get("subscriber"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "subscriber query parameter required", h.logger)
		return
	}
	member, ok := h.hub.Subscriber(session, id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown subscriber", h.logger)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var snap snapshot.SharedGame
		if !decodeBody(w, r, &snap, h.logger) {
			return
		}
		if err := member.Send(r.Context(), snap); err != nil {
			writeError(w, r, http.StatusInternalServerError, "publish failed", h.logger)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	case http.MethodGet:
		wait := 25 * time.Second
		if raw := r.URL.Query().Get("wait"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil || parsed <= 0 {
				writeError(w, r, http.StatusBadRequest, "invalid wait duration", h.logger)
				return
			}
			wait = parsed
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case snap, open := <-member.Receive():
			if !open {
				writeError(w, r, http.StatusGone, "subscriber closed", h.logger)
				return
			}
			writeJSON(w, http.StatusOK, snap, h.logger)
		case <-timer.C:
			w.WriteHeader(http.StatusNoContent)
		case <-r.Context().Done():
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", logger)
		return false
	}
	return true
}

func pathSegment(path, prefix string) string {
	seg := strings.TrimPrefix(path, prefix)
	if seg == "" || strings.Contains(seg, "/") {
		return ""
	}
	return seg
}

func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
