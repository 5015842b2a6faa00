package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter mounts the quiz, auth and session-stream endpoints.
func NewRouter(quiz *QuizHandler, auth *AuthHandler, ws *WSHandler, tokens TokenVerifier) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/quiz/sessions", quiz.Start).Methods(http.MethodPost)
	v1.HandleFunc("/quiz/sessions/{id}", quiz.View).Methods(http.MethodGet)
	v1.HandleFunc("/quiz/sessions/{id}/answers", quiz.Answer).Methods(http.MethodPost)
	v1.HandleFunc("/quiz/sessions/{id}/advance", quiz.Advance).Methods(http.MethodPost)
	v1.HandleFunc("/quiz/sessions/{id}/retreat", quiz.Retreat).Methods(http.MethodPost)
	v1.HandleFunc("/quiz/answers/{clientId}", quiz.StoredAnswers).Methods(http.MethodGet)

	v1.HandleFunc("/auth/signup", auth.SignUp).Methods(http.MethodPost)
	v1.HandleFunc("/auth/signup/federated", auth.SignUpFederated).Methods(http.MethodPost)
	v1.HandleFunc("/auth/signin", auth.SignIn).Methods(http.MethodPost)
	v1.HandleFunc("/auth/signin/federated", auth.SignInFederated).Methods(http.MethodPost)

	// token travels in the query string for browsers that cannot set headers on upgrade
	v1.HandleFunc("/ws/session", ws.ServeWS).Methods(http.MethodGet)

	private := v1.NewRoute().Subrouter()
	private.Use(RequireBearer(tokens))
	private.HandleFunc("/auth/signout", auth.SignOut).Methods(http.MethodPost)
	private.HandleFunc("/auth/me", auth.Me).Methods(http.MethodGet)

	return r
}
