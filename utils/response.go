package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"treadline/apiclient"
)

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

// RespondWithUpstreamError maps a collaborator failure onto the response: a 4xx
// from the collaborator is passed through with its message, anything else
// becomes 502 with fallback as the message.
func RespondWithUpstreamError(w http.ResponseWriter, err error, fallback string) {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Status)
		}
		RespondWithError(w, apiErr.Status, msg)
		return
	}
	zap.L().Error(fallback, zap.Error(err))
	RespondWithError(w, http.StatusBadGateway, fallback)
}
