package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/server/profiles"
	"github.com/dmitrijs2005/yggkeeper/internal/server/services"
	"github.com/dmitrijs2005/yggkeeper/internal/server/tokens"
	"github.com/go-chi/render"
)

type authenticateRequest struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	ClientToken string `json:"clientToken"`
	RequestUser bool   `json:"requestUser"`
}

type profileBody struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type refreshRequest struct {
	AccessToken     string       `json:"accessToken" validate:"required"`
	ClientToken     string       `json:"clientToken"`
	RequestUser     bool         `json:"requestUser"`
	SelectedProfile *profileBody `json:"selectedProfile"`
}

type validateRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
	ClientToken string `json:"clientToken"`
}

type invalidateRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

type signoutRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authenticateResponse struct {
	AccessToken       string              `json:"accessToken"`
	ClientToken       string              `json:"clientToken"`
	AvailableProfiles []*profiles.Profile `json:"availableProfiles"`
	SelectedProfile   *profiles.Profile   `json:"selectedProfile,omitempty"`
	User              *profiles.UserInfo  `json:"user,omitempty"`
}

type refreshResponse struct {
	AccessToken     string             `json:"accessToken"`
	ClientToken     string             `json:"clientToken"`
	SelectedProfile *profiles.Profile  `json:"selectedProfile,omitempty"`
	User            *profiles.UserInfo `json:"user,omitempty"`
}

// decode reads a JSON body into dst and validates it. Any failure is an
// invalid argument.
func (h *handler) decode(r *http.Request, dst any) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}
	return nil
}

func selectedProfile(tok *tokens.Token) *profiles.Profile {
	if tok.BoundCharacter == nil {
		return nil
	}
	return profiles.Simple(tok.BoundCharacter)
}

func (h *handler) authenticate(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.authenticate"
	ctx := r.Context()
	log := h.logger(r, op)

	var req authenticateRequest
	if err := h.decode(r, &req); err != nil {
		writeError(ctx, w, r, log, err)
		return
	}

	tok, err := h.Auth.Authenticate(ctx, req.Username, req.Password, req.ClientToken)
	if err != nil {
		writeError(ctx, w, r, log, err)
		return
	}

	available := make([]*profiles.Profile, 0, len(tok.User.Characters))
	for _, c := range tok.User.Characters {
		available = append(available, profiles.Simple(c))
	}

	resp := authenticateResponse{
		AccessToken:       tok.AccessToken,
		ClientToken:       tok.ClientToken,
		AvailableProfiles: available,
		SelectedProfile:   selectedProfile(tok),
	}
	if req.RequestUser {
		resp.User = profiles.User(tok.User)
	}

	log.Info(ctx, "token issued", "user_id", tok.User.ID, "access_token", tokenPrefix(tok.AccessToken))
	render.JSON(w, r, resp)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.refresh"
	ctx := r.Context()
	log := h.logger(r, op)

	var req refreshRequest
	if err := h.decode(r, &req); err != nil {
		writeError(ctx, w, r, log, err)
		return
	}

	var selected *services.ProfileRef
	if req.SelectedProfile != nil {
		selected = &services.ProfileRef{ID: req.SelectedProfile.ID, Name: req.SelectedProfile.Name}
	}

	tok, err := h.Auth.Refresh(ctx, req.AccessToken, req.ClientToken, selected)
	if err != nil {
		writeError(ctx, w, r, log, err)
		return
	}

	resp := refreshResponse{
		AccessToken:     tok.AccessToken,
		ClientToken:     tok.ClientToken,
		SelectedProfile: selectedProfile(tok),
	}
	if req.RequestUser {
		resp.User = profiles.User(tok.User)
	}

	log.Info(ctx, "token refreshed", "user_id", tok.User.ID, "access_token", tokenPrefix(tok.AccessToken))
	render.JSON(w, r, resp)
}

func (h *handler) validateToken(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.validate"
	ctx := r.Context()
	log := h.logger(r, op)

	var req validateRequest
	if err := h.decode(r, &req); err != nil {
		writeError(ctx, w, r, log, err)
		return
	}

	if err := h.Auth.Validate(ctx, req.AccessToken, req.ClientToken); err != nil {
		writeError(ctx, w, r, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) invalidate(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.invalidate"
	ctx := r.Context()
	log := h.logger(r, op)

	var req invalidateRequest
	if err := h.decode(r, &req); err != nil {
		writeError(ctx, w, r, log, err)
		return
	}

	h.Auth.Invalidate(ctx, req.AccessToken)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) signout(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.signout"
	ctx := r.Context()
	log := h.logger(r, op)

	var req signoutRequest
	if err := h.decode(r, &req); err != nil {
		writeError(ctx, w, r, log, err)
		return
	}

	if err := h.Auth.Signout(ctx, req.Username, req.Password); err != nil {
		writeError(ctx, w, r, log, err)
		return
	}

	log.Info(ctx, "user signed out")
	w.WriteHeader(http.StatusNoContent)
}
