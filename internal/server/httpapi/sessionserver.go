package httpapi

import (
	"errors"
	"net"
	"net/http"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type joinRequest struct {
	AccessToken     string `json:"accessToken" validate:"required"`
	SelectedProfile string `json:"selectedProfile" validate:"required"`
	ServerID        string `json:"serverId" validate:"required"`
}

// clientIP is the peer address without port. RealIP has already applied
// forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *handler) join(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.join"
	ctx := r.Context()
	log := h.logger(r, op)

	var req joinRequest
	if err := h.decode(r, &req); err != nil {
		writeError(ctx, w, r, log, err)
		return
	}

	if err := h.Sessions.Join(ctx, req.AccessToken, req.SelectedProfile, req.ServerID, clientIP(r)); err != nil {
		writeError(ctx, w, r, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) hasJoined(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.hasJoined"
	ctx := r.Context()
	log := h.logger(r, op)

	q := r.URL.Query()
	username, serverID := q.Get("username"), q.Get("serverId")
	if username == "" || serverID == "" {
		writeError(ctx, w, r, log, common.ErrInvalidArgument)
		return
	}

	p, err := h.Sessions.HasJoined(ctx, username, serverID, q.Get("ip"))
	if err == nil {
		render.JSON(w, r, p)
		return
	}
	if !errors.Is(err, common.ErrorNotFound) {
		writeError(ctx, w, r, log, err)
		return
	}

	resp, err := h.Sessions.Forward(ctx, q)
	if err != nil {
		// not verified; the game server treats this as a failed join
		log.Debug(ctx, "no upstream answer", "error", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.profile"
	ctx := r.Context()
	log := h.logger(r, op)

	signed := r.URL.Query().Get("unsigned") == "false"

	p, err := h.Profiles.Lookup(ctx, chi.URLParam(r, "uuid"), signed)
	if errors.Is(err, common.ErrorNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(ctx, w, r, log, err)
		return
	}
	render.JSON(w, r, p)
}
