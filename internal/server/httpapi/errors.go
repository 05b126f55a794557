package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/logging"
	"github.com/go-chi/render"
)

// ErrorResponse is the body of every failed protocol call.
type ErrorResponse struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

type apiError struct {
	target  error
	status  int
	code    string
	message string
}

const (
	forbiddenOperation = "ForbiddenOperationException"
	illegalArgument    = "IllegalArgumentException"
)

// errorTable is checked in order; the first matching sentinel wins.
var errorTable = []apiError{
	{common.ErrInvalidCredentials, http.StatusForbidden, forbiddenOperation, "Invalid credentials. Invalid username or password."},
	{common.ErrInvalidToken, http.StatusForbidden, forbiddenOperation, "Invalid token."},
	{common.ErrTokenAlreadyAssigned, http.StatusBadRequest, illegalArgument, "Access token already has a profile assigned."},
	{common.ErrAccessDenied, http.StatusForbidden, forbiddenOperation, "Access denied."},
	{common.ErrProfileNotFound, http.StatusBadRequest, illegalArgument, "No such profile."},
	{common.ErrInvalidProfile, http.StatusForbidden, forbiddenOperation, "Invalid profile."},
	{common.ErrRateLimited, http.StatusForbidden, forbiddenOperation, "Exceed speed limit."},
	{common.ErrTooManyCharacters, http.StatusForbidden, "TooManyCharacter", "Too many characters."},
	{common.ErrNameAlreadyTaken, http.StatusForbidden, "UserAlreadyExisted", "Name already taken."},
	{common.ErrUploadFailed, http.StatusInternalServerError, "FileUploadFailed", "Failed to store the texture."},
	{common.ErrMalformedImage, http.StatusBadRequest, illegalArgument, "Bad image."},
	{common.ErrInvalidArgument, http.StatusBadRequest, illegalArgument, "Invalid argument."},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "Unauthorized", "401 Unauthorized"},
}

var internalError = apiError{
	status:  http.StatusInternalServerError,
	code:    "Internal Server Error",
	message: "500 Internal Server Error",
}

func lookupError(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e
		}
	}
	return internalError
}

// writeError renders err as a stable code and message. Unknown errors are
// logged and reported as internal errors without details.
func writeError(ctx context.Context, w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	e := lookupError(err)
	if e.status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", "error", err)
	} else {
		log.Debug(ctx, "request rejected", "error", err)
	}

	render.Status(r, e.status)
	render.JSON(w, r, ErrorResponse{Error: e.code, ErrorMessage: e.message})
}
