package server

import (
	"errors"
	"net/http"

	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"github.com/Yates-Labs/storyprompt/internal/narrative"
	"github.com/Yates-Labs/storyprompt/internal/prompt"
	"github.com/Yates-Labs/storyprompt/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorMapping pairs a sentinel with its status and message key suffix.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{session.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{session.ErrIndexOutOfRange, http.StatusNotFound, "index_out_of_range"},
	{session.ErrNoElementAvailable, http.StatusConflict, "no_element_available"},
	{session.ErrNoElements, http.StatusUnprocessableEntity, "no_elements"},
	{session.ErrInvalidRating, http.StatusBadRequest, "invalid_rating"},
	{session.ErrNoStory, http.StatusNotFound, "no_story"},
	{session.ErrUnsupportedFormat, http.StatusBadRequest, "bad_request"},
	{prompt.ErrInvalidWordCount, http.StatusBadRequest, "invalid_word_count"},
	{prompt.ErrUnknownTemplate, http.StatusBadRequest, "bad_request"},
	{narrative.ErrUnknownVendor, http.StatusBadRequest, "unknown_vendor"},
	{narrative.ErrMissingAPIKey, http.StatusBadRequest, "api_key_required"},
}

// handleError writes the response for err and stops the handler chain.
func (s *Server) handleError(c *gin.Context, err error, lang language.Tag) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			abortWithError(c, m.status, m.code, lang)
			return
		}
	}

	var failure *narrative.GenerationFailure
	if errors.As(err, &failure) {
		s.log.Warn("Story generation failed",
			zap.String("vendor", string(failure.Vendor)),
			zap.Int("vendor_status", failure.StatusCode),
			zap.Bool("timed_out", failure.TimedOut),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusBadGateway, errorBody{Error: errorDetail{
			Code:    "generation_failed",
			Message: i18n.Text(lang, "error.generation_failed", failure.Error()),
		}})
		return
	}

	_ = c.Error(err)
	abortWithError(c, http.StatusInternalServerError, "unexpected", lang)
}

func abortWithError(c *gin.Context, status int, code string, lang language.Tag) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{
		Code:    code,
		Message: i18n.Text(lang, "error."+code),
	}})
}

// badRequest reports an unreadable request body or parameter.
func badRequest(c *gin.Context, lang language.Tag) {
	abortWithError(c, http.StatusBadRequest, "bad_request", lang)
}
