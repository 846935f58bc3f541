package handler

import (
	"errors"
	"net/http"

	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// errorStatus maps a service error to its HTTP status and response code.
// Unknown errors are internal.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrInvalidPIN):
		return http.StatusUnauthorized, response.ErrInvalidPIN

	case errors.Is(err, service.ErrClassNotFound),
		errors.Is(err, service.ErrWeekNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrResultNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, store.ErrInvalidPath):
		return http.StatusNotFound, response.ErrNotFound

	case errors.Is(err, service.ErrNotJoined):
		return http.StatusForbidden, response.ErrNotJoined
	case errors.Is(err, service.ErrThreadForbidden):
		return http.StatusForbidden, response.ErrForbidden

	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, response.ErrUsernameTaken
	case errors.Is(err, service.ErrInvalidUsername):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, service.ErrInvalidAccessCode):
		return http.StatusBadRequest, response.ErrInvalidAccessCode
	case errors.Is(err, service.ErrEmptyComment):
		return http.StatusBadRequest, response.ErrEmptyComment
	case errors.Is(err, service.ErrCommentTooLong):
		return http.StatusBadRequest, response.ErrCommentTooLong

	case errors.Is(err, service.ErrNotQuiz):
		return http.StatusBadRequest, response.ErrNotQuiz
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusConflict, response.ErrNoQuestions
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusConflict, response.ErrNoActiveSession
	case errors.Is(err, service.ErrQuizNotInProgress):
		return http.StatusConflict, response.ErrQuizNotInProgress
	case errors.Is(err, service.ErrSubmitFailed):
		return http.StatusInternalServerError, response.ErrSubmitFailed
	case errors.Is(err, service.ErrAccessCodeExhausted):
		return http.StatusInternalServerError, response.ErrInternal
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes the error response for err. Internal errors are logged.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
