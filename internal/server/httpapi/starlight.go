package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/go-chi/render"
)

type verifyImageResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	OriginWidth  int    `json:"origin_width,omitempty"`
	OriginHeight int    `json:"origin_height,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	Image        string `json:"image,omitempty"`
}

type starlightStatus struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type starlightLoginForm struct {
	Email        string `validate:"required,email"`
	Password     string `validate:"required"`
	ClientID     string `validate:"required"`
	VerifyDegree string `validate:"required"`
}

func (h *handler) verifyImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ch, err := h.Starlight.VerifyImage(ctx)
	if err != nil {
		// logged by the service
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, verifyImageResponse{Status: "failed", ErrorMessage: "Failed to get verify image"})
		return
	}

	render.JSON(w, r, verifyImageResponse{
		Status:       "success",
		OriginWidth:  ch.OriginWidth,
		OriginHeight: ch.OriginHeight,
		Width:        ch.Width,
		Height:       ch.Height,
		ClientID:     ch.ClientID,
		Image:        base64.StdEncoding.EncodeToString(ch.JPEG),
	})
}

// starlightLogin accepts its fields from the query string or a urlencoded
// form body. Rejections are reported with 200 and status "failed".
func (h *handler) starlightLogin(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.starlightLogin"
	ctx := r.Context()
	log := h.logger(r, op)

	form := starlightLoginForm{
		Email:        r.FormValue("email"),
		Password:     r.FormValue("pwd"),
		ClientID:     r.FormValue("clientId"),
		VerifyDegree: r.FormValue("verifyDegree"),
	}
	degree, convErr := strconv.Atoi(form.VerifyDegree)
	if err := h.validate.Struct(form); err != nil || convErr != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, starlightStatus{Status: "failed", ErrorMessage: "Invalid request."})
		return
	}

	err := h.Starlight.Login(ctx, form.Email, form.Password, form.ClientID, degree)
	switch {
	case err == nil:
		render.JSON(w, r, starlightStatus{Status: "success"})
	case errors.Is(err, common.ErrWrongVerifyCode):
		render.JSON(w, r, starlightStatus{Status: "failed", ErrorMessage: "Wrong verify code!"})
	case errors.Is(err, common.ErrInvalidCredentials):
		render.JSON(w, r, starlightStatus{Status: "failed", ErrorMessage: "Wrong password!"})
	default:
		log.Error(ctx, "starlight login failed", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, starlightStatus{Status: "failed", ErrorMessage: "Internal error."})
	}
}
