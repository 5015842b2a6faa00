package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"skillscape/internal/domain"
)

type errorBody struct {
	Error    string               `json:"error"`
	Kind     domain.AuthErrorKind `json:"kind,omitempty"`
	Target   domain.Target        `json:"target,omitempty"`
	Redirect string               `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeError maps lookup sentinels and the auth taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuizSessionNotFound),
		errors.Is(err, domain.ErrStepNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
		return
	}

	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		log.Printf("request failed: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	body := errorBody{Error: authErr.Message, Kind: authErr.Kind}
	status := http.StatusInternalServerError
	switch authErr.Kind {
	case domain.KindDuplicateAccount:
		status = http.StatusConflict
	case domain.KindInvalidCredentials:
		status = http.StatusUnauthorized
	case domain.KindInvalidEmailFormat:
		status = http.StatusBadRequest
	case domain.KindRateLimited:
		status = http.StatusTooManyRequests
	case domain.KindProfileMissing:
		status = http.StatusNotFound
		body.Target = domain.TargetOnboardingRedirect
		body.Redirect = domain.TargetOnboardingRedirect.Route()
	default:
		log.Printf("auth failed: %v", authErr.Cause)
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}
