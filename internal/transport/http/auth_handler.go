package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"skillscape/internal/app"
	"skillscape/internal/domain"
)

// AnswerSource looks up a client's completed onboarding answers.
type AnswerSource interface {
	StoredAnswers(ctx context.Context, clientID string) (domain.Answers, bool, error)
}

type AuthHandler struct {
	auth     *app.AuthService
	sessions *app.SessionContext
	answers  AnswerSource
}

func NewAuthHandler(auth *app.AuthService, sessions *app.SessionContext, answers AnswerSource) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, answers: answers}
}

type signUpRequest struct {
	Email    string               `json:"email"`
	Password string               `json:"password"`
	ClientID string               `json:"clientId"`
	Profile  domain.ProfileFields `json:"profile"`
}

type federatedRequest struct {
	IDToken  string               `json:"idToken"`
	ClientID string               `json:"clientId"`
	Profile  domain.ProfileFields `json:"profile"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User      domain.SessionUser `json:"user"`
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	Target    domain.Target      `json:"target"`
	Redirect  string             `json:"redirect"`
}

// SignUp handles POST /v1/auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.Profile, h.storedAnswers(r.Context(), req.ClientID))
	h.respond(w, r, result, err)
}

// SignUpFederated handles POST /v1/auth/signup/federated.
func (h *AuthHandler) SignUpFederated(w http.ResponseWriter, r *http.Request) {
	var req federatedRequest
	if err := decode(r, &req); err != nil || req.IDToken == "" {
		writeMessage(w, http.StatusBadRequest, "idToken is required")
		return
	}
	result, err := h.auth.SignUpWithFederatedIdentity(r.Context(), req.IDToken, req.Profile, h.storedAnswers(r.Context(), req.ClientID))
	h.respond(w, r, result, err)
}

// SignIn handles POST /v1/auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	h.respond(w, r, result, err)
}

// SignInFederated handles POST /v1/auth/signin/federated.
func (h *AuthHandler) SignInFederated(w http.ResponseWriter, r *http.Request) {
	var req federatedRequest
	if err := decode(r, &req); err != nil || req.IDToken == "" {
		writeMessage(w, http.StatusBadRequest, "idToken is required")
		return
	}
	result, err := h.auth.SignInWithFederatedIdentity(r.Context(), req.IDToken)
	h.respond(w, r, result, err)
}

// SignOut handles POST /v1/auth/signout.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /v1/auth/me. The session context answers when it already
// holds the user; otherwise the profile is read directly.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if user, ok := h.sessions.CurrentUser(identity.UID); ok {
		writeJSON(w, http.StatusOK, user)
		return
	}
	user, err := h.auth.User(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// respond also re-enriches the session context: the provider announces a
// sign-in before the profile document is written.
func (h *AuthHandler) respond(w http.ResponseWriter, r *http.Request, result app.AuthResult, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.sessions.Refresh(r.Context(), result.Identity); err != nil {
		log.Printf("refresh session for %s: %v", result.Identity.UID, err)
	}
	writeJSON(w, http.StatusOK, authResponse{
		User:      result.User,
		Token:     result.Identity.Token,
		ExpiresAt: result.Identity.TokenExpiresAt,
		Target:    result.Target,
		Redirect:  result.Target.Route(),
	})
}

// storedAnswers is best effort: sign-up proceeds without answers when the
// lookup fails.
func (h *AuthHandler) storedAnswers(ctx context.Context, clientID string) domain.Answers {
	if clientID == "" {
		return nil
	}
	answers, ok, err := h.answers.StoredAnswers(ctx, clientID)
	if err != nil {
		log.Printf("load %s for %s: %v", domain.OnboardingAnswersKey, clientID, err)
		return nil
	}
	if !ok {
		return nil
	}
	return answers
}
