package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const (
	maxUploadBytes  = 2 << 20
	textureMaxAge   = 30 * 24 * 60 * 60
	bearerPrefix    = "Bearer "
	maxQueriedNames = 100
)

// Meta is served at the root so clients can discover the server.
type Meta struct {
	ServerName            string
	ImplementationName    string
	ImplementationVersion string
	NonEmailLogin         bool
	SkinDomains           []string
	PublicKeyPEM          string
}

type metaBody struct {
	ServerName            string `json:"serverName"`
	ImplementationName    string `json:"implementationName"`
	ImplementationVersion string `json:"implementationVersion"`
	NonEmailLogin         bool   `json:"feature.non_email_login"`
}

type rootResponse struct {
	Meta               metaBody `json:"meta"`
	SkinDomains        []string `json:"skinDomains"`
	SignaturePublickey string   `json:"signaturePublickey"`
}

type verifyCodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Receiver     string `json:"receiver"`
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	domains := h.Meta.SkinDomains
	if domains == nil {
		domains = []string{}
	}
	render.JSON(w, r, rootResponse{
		Meta: metaBody{
			ServerName:            h.Meta.ServerName,
			ImplementationName:    h.Meta.ImplementationName,
			ImplementationVersion: h.Meta.ImplementationVersion,
			NonEmailLogin:         h.Meta.NonEmailLogin,
		},
		SkinDomains:        domains,
		SignaturePublickey: h.Meta.PublicKeyPEM,
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.status"
	ctx := r.Context()

	st, err := h.Profiles.Status(ctx)
	if err != nil {
		writeError(ctx, w, r, h.logger(r, op), err)
		return
	}
	render.JSON(w, r, st)
}

func (h *handler) queryProfiles(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.queryProfiles"
	ctx := r.Context()
	log := h.logger(r, op)

	var names []string
	if err := render.DecodeJSON(r.Body, &names); err != nil {
		writeError(ctx, w, r, log, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err))
		return
	}
	if len(names) > maxQueriedNames {
		writeError(ctx, w, r, log, fmt.Errorf("%w: %d names", common.ErrInvalidArgument, len(names)))
		return
	}

	result, err := h.Profiles.Query(ctx, names)
	if err != nil {
		writeError(ctx, w, r, log, err)
		return
	}
	render.JSON(w, r, result)
}

// bearer extracts the token from an Authorization header, or "".
func bearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(v, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(v, bearerPrefix)
}

func (h *handler) uploadTexture(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.uploadTexture"
	ctx := r.Context()
	log := h.logger(r, op)

	// refuse before reading up to maxUploadBytes of body
	token := bearer(r)
	if token == "" {
		writeError(ctx, w, r, log, common.ErrorUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(ctx, w, r, log, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(ctx, w, r, log, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err))
		return
	}
	defer file.Close()

	tex, err := h.Textures.Upload(ctx, token, chi.URLParam(r, "uuid"), chi.URLParam(r, "textureType"),
		file, r.FormValue("model"))
	if err != nil {
		writeError(ctx, w, r, log, err)
		return
	}

	log.Info(ctx, "texture uploaded", "hash", tex.Hash, "slot", chi.URLParam(r, "textureType"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteTexture(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.deleteTexture"
	ctx := r.Context()
	log := h.logger(r, op)

	token := bearer(r)
	if token == "" {
		writeError(ctx, w, r, log, common.ErrorUnauthorized)
		return
	}

	err := h.Textures.Delete(ctx, token, chi.URLParam(r, "uuid"), chi.URLParam(r, "textureType"))
	if err != nil {
		writeError(ctx, w, r, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) texture(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.texture"
	ctx := r.Context()

	hash := chi.URLParam(r, "hash")
	data, ok, err := h.Textures.Load(ctx, hash)
	if err != nil {
		writeError(ctx, w, r, h.logger(r, op), err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("ETag", `"`+hash+`"`)
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(textureMaxAge))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (h *handler) sendVerifyCode(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.sendVerifyCode"
	ctx := r.Context()
	log := h.logger(r, op)

	email := chi.URLParam(r, "email")
	if err := h.validate.Var(email, "required,email"); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verifyCodeResponse{Status: "failed", ErrorMessage: "Invalid email.", Receiver: email})
		return
	}

	err := h.Verification.SendCode(ctx, email)
	switch {
	case err == nil:
		render.JSON(w, r, verifyCodeResponse{Status: "success", Receiver: email})
	case errors.Is(err, common.ErrRateLimited):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, verifyCodeResponse{Status: "failed", ErrorMessage: "Exceed speed limit.", Receiver: email})
	default:
		log.Error(ctx, "verification code not sent", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, verifyCodeResponse{Status: "failed", ErrorMessage: "Failed to send mail.", Receiver: email})
	}
}
