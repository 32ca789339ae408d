// Package ws is the websocket edge: it upgrades HTTP requests, authenticates
// them, and hands frames to the presence layer. Rejections after upgrade use
// application close codes so clients can distinguish auth failures from
// transient network errors.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"bouncehub/internal/event"
	"bouncehub/internal/hub"
	"bouncehub/internal/identity"
	"bouncehub/internal/presence"
)

// Application close codes, in the private 4000 range.
const (
	closeInvalidToken   = 4001
	closeMissingGuest   = 4002
	closeNotParticipant = 4003
	closeUnknownEvent   = 4004
)

const (
	// readWait is how long a connection may stay silent before the read loop
	// gives up. Clients keep it alive with text pings.
	readWait = 90 * time.Second
	// maxFrameSize caps inbound frames; chat is the largest legitimate payload.
	maxFrameSize = 4096
)

// Handler serves the live endpoints: event websockets, personal user
// websockets, and the share-link mint.
type Handler struct {
	log       *slog.Logger
	deps      presence.Deps
	directory event.Directory
	verifier  identity.Verifier
	baseURL   string
	upgrader  websocket.Upgrader
}

// NewHandler wires the websocket edge. baseURL feeds minted share-link URLs.
func NewHandler(log *slog.Logger, deps presence.Deps, verifier identity.Verifier, baseURL string) *Handler {
	return &Handler{
		log:       log,
		deps:      deps,
		directory: deps.Directory,
		verifier:  verifier,
		baseURL:   strings.TrimRight(baseURL, "/"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Join links are shared across apps and browsers; the share token
			// is the gate, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeEvent handles GET /ws/events/{shareToken}. The request is upgraded
// first so failures can be reported with close codes.
func (h *Handler) ServeEvent(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn := newWSConn(sock)

	evt, err := h.directory.ByShareToken(r.Context(), chi.URLParam(r, "shareToken"))
	if err != nil {
		conn.closeWithCode(closeUnknownEvent, "unknown event")
		return
	}

	who, code, err := h.identify(r)
	if err != nil {
		conn.closeWithCode(code, err.Error())
		return
	}
	if who.Authenticated {
		ok, err := h.directory.IsParticipant(r.Context(), evt.ID, who.ID)
		if err != nil {
			h.log.Error("participant lookup failed", "event_id", evt.ID, "error", err)
			conn.closeWithCode(closeUnknownEvent, "lookup failed")
			return
		}
		if !ok {
			conn.closeWithCode(closeNotParticipant, "not a participant")
			return
		}
	}

	session := presence.NewSession(h.deps, evt, who, conn)
	session.Start(r.Context())
	h.readLoop(sock, conn, session)
}

// readLoop pumps inbound frames into the session until the transport dies or
// the session closes. A dead transport is a drop, never a leave.
func (h *Handler) readLoop(sock *websocket.Conn, conn *wsConn, session *presence.Session) {
	defer func() {
		session.Drop(context.Background())
		conn.close()
	}()

	sock.SetReadLimit(maxFrameSize)
	for {
		_ = sock.SetReadDeadline(time.Now().Add(readWait))
		_, raw, err := sock.ReadMessage()
		if err != nil {
			return
		}
		if err := session.Handle(context.Background(), raw); errors.Is(err, presence.ErrSessionClosed) {
			return
		}
	}
}

// ServeUser handles GET /ws/user: a personal push channel for authenticated
// app users, fed by targeted publishes to their user key.
func (h *Handler) ServeUser(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn := newWSConn(sock)

	who, err := h.verifier.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		conn.closeWithCode(closeInvalidToken, "invalid token")
		return
	}

	h.deps.Hub.Register(conn, hub.UserKey(who.ID))
	defer func() {
		h.deps.Hub.Unregister(conn, hub.UserKey(who.ID))
		conn.close()
	}()

	sock.SetReadLimit(maxFrameSize)
	for {
		_ = sock.SetReadDeadline(time.Now().Add(readWait))
		_, raw, err := sock.ReadMessage()
		if err != nil {
			return
		}
		if strings.TrimSpace(string(raw)) == "ping" {
			if err := conn.Send([]byte("pong")); err != nil {
				return
			}
		}
	}
}

// CreateShareLink handles POST /api/events/{eventID}/share-link. Only
// participants may mint a link; the token is stable across calls.
func (h *Handler) CreateShareLink(w http.ResponseWriter, r *http.Request) {
	who, err := h.bearerIdentity(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	eventID := chi.URLParam(r, "eventID")
	if _, err := h.directory.ByID(r.Context(), eventID); err != nil {
		if errors.Is(err, event.ErrNotFound) {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		h.log.Error("event lookup failed", "event_id", eventID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ok, err := h.directory.IsParticipant(r.Context(), eventID, who.ID)
	if err != nil {
		h.log.Error("participant lookup failed", "event_id", eventID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	token, err := h.directory.EnsureShareToken(r.Context(), eventID)
	if err != nil {
		h.log.Error("minting share token failed", "event_id", eventID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"share_token": token,
		"url":         h.shareBaseURL(r) + "/e/" + token,
	})
}

// shareBaseURL prefers the configured public base; without one the link is
// derived from the request so it at least works behind the serving host.
func (h *Handler) shareBaseURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// identify resolves the connection identity from query parameters: a bearer
// token for app users, or guest_id plus name for anonymous guests.
func (h *Handler) identify(r *http.Request) (identity.Identity, int, error) {
	q := r.URL.Query()
	if token := q.Get("token"); token != "" {
		who, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			return identity.Identity{}, closeInvalidToken, errors.New("invalid token")
		}
		return who, 0, nil
	}
	who := identity.Guest(q.Get("guest_id"), q.Get("name"))
	if !who.Valid() {
		return identity.Identity{}, closeMissingGuest, errors.New("guest identity required")
	}
	return who, 0, nil
}

func (h *Handler) bearerIdentity(r *http.Request) (identity.Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return identity.Identity{}, errors.New("missing bearer token")
	}
	return h.verifier.Verify(r.Context(), token)
}
