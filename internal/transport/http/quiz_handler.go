package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"skillscape/internal/app"
	"skillscape/internal/domain"
)

type QuizHandler struct {
	service *app.QuizService
}

func NewQuizHandler(service *app.QuizService) *QuizHandler {
	return &QuizHandler{service: service}
}

type startRequest struct {
	ClientID string `json:"clientId"`
	QuizID   string `json:"quizId"`
}

type answerRequest struct {
	StepID string `json:"stepId"`
	Value  string `json:"value"`
}

type transitionResponse struct {
	domain.QuizView
	Accepted bool `json:"accepted"`
}

type storedAnswersResponse struct {
	ClientID string         `json:"clientId"`
	Answers  domain.Answers `json:"onboardingAnswers"`
}

// Start handles POST /v1/quiz/sessions.
func (h *QuizHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.service.Start(r.Context(), req.ClientID, req.QuizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// View handles GET /v1/quiz/sessions/{id}.
func (h *QuizHandler) View(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Answer handles POST /v1/quiz/sessions/{id}/answers. A rejected answer is
// not an error; the response reports accepted=false with the unchanged view.
func (h *QuizHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil || req.StepID == "" {
		writeMessage(w, http.StatusBadRequest, "stepId and value are required")
		return
	}
	view, accepted, err := h.service.Answer(r.Context(), mux.Vars(r)["id"], req.StepID, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{QuizView: view, Accepted: accepted})
}

// Advance handles POST /v1/quiz/sessions/{id}/advance.
func (h *QuizHandler) Advance(w http.ResponseWriter, r *http.Request) {
	view, moved, err := h.service.Advance(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{QuizView: view, Accepted: moved})
}

// Retreat handles POST /v1/quiz/sessions/{id}/retreat.
func (h *QuizHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	view, moved, err := h.service.Retreat(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{QuizView: view, Accepted: moved})
}

// StoredAnswers handles GET /v1/quiz/answers/{clientId}.
func (h *QuizHandler) StoredAnswers(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]
	answers, ok, err := h.service.StoredAnswers(r.Context(), clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeMessage(w, http.StatusNotFound, "no answers stored for client")
		return
	}
	writeJSON(w, http.StatusOK, storedAnswersResponse{ClientID: clientID, Answers: answers})
}
