package errorhandler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/pkg/response"
)

// HandleError logs the underlying error and writes the standard error
// envelope. Handlers map domain errors to statuses themselves and fall
// back to this for anything unexpected.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	log.Error().
		Err(err).
		Int("status", status).
		Str("code", code).
		Msg(message)

	response.Error(w, status, code, message)
}
