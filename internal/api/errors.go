package api

import (
	"errors"
	"net/http"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/domain"
	"github.com/skillswap/backend/pkg/response"
	"github.com/skillswap/backend/pkg/validator"
	"go.uber.org/zap"
)

// writeError maps a service error onto an HTTP response. Unexpected errors are
// logged and reported as 500 with the generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, message string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		response.ValidationFailed(w, verrs)
	case errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordTooLong):
		var errs validator.ValidationErrors
		errs.Add("password", err.Error())
		response.ValidationFailed(w, errs)
	case errors.Is(err, domain.ErrSelfRequest),
		errors.Is(err, domain.ErrDuplicatePending),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyRated):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, domain.ErrRequestNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrUserAlreadyExists):
		response.Conflict(w, "user with this email already exists")
	case errors.Is(err, domain.ErrTooManyAttempts):
		response.TooManyRequests(w, "too many failed login attempts, try again later")
	case errors.Is(err, domain.ErrInvalidCredentials):
		response.Unauthorized(w, "invalid email or password")
	case errors.Is(err, domain.ErrUserInactive):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrExpiredToken):
		response.Unauthorized(w, "token has expired")
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidGoogleToken),
		errors.Is(err, auth.ErrGoogleEmailMissing):
		response.Unauthorized(w, err.Error())
	default:
		logger.Error(message,
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		response.InternalError(w, message)
	}
}
