package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"skillscape/internal/app"
	"skillscape/internal/domain"
	"skillscape/internal/identity"
	"skillscape/internal/infra/memory"
)

const (
	testFederatedIssuer = "https://accounts.example.com"
	testFederatedSecret = "federated-secret"
)

type testServer struct {
	*httptest.Server
	sessions *app.SessionContext
	profiles *memory.ProfileStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	provider := identity.NewProvider(identity.Options{
		Credentials: memory.NewCredentialStore(),
		Limiter:     memory.NewAttemptLimiter(5, time.Minute),
		Revocations: memory.NewRevocationStore(),
		Tokens:      identity.NewTokenIssuer("session-secret", "skillscape", time.Hour),
		Federated:   identity.NewFederatedVerifier(testFederatedIssuer, "", testFederatedSecret),
		BcryptCost:  bcrypt.MinCost,
	})
	profiles := memory.NewProfileStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(domain.OnboardingQuiz()), time.Minute)
	quizzes := app.NewQuizService(memory.NewSessionStore(time.Minute), quizRepo, memory.NewAnswerStore(), "")
	auth := app.NewAuthService(provider, profiles)

	sessions := app.NewSessionContext(provider, profiles)
	if err := sessions.Start(context.Background()); err != nil {
		t.Fatalf("start session context: %v", err)
	}

	router := NewRouter(
		NewQuizHandler(quizzes),
		NewAuthHandler(auth, sessions, quizzes),
		NewWSHandler(sessions, provider),
		provider,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		sessions.Stop()
	})
	return &testServer{Server: srv, sessions: sessions, profiles: profiles}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type transitionBody struct {
	domain.QuizView
	Accepted bool `json:"accepted"`
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestQuizEndpointsCounselorPath(t *testing.T) {
	srv := newTestServer(t)

	var view domain.QuizView
	if status := srv.do(t, http.MethodPost, "/v1/quiz/sessions", "", startRequest{ClientID: "client-1"}, &view); status != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d", status)
	}
	if view.Step.ID != "user-type" || view.StepCount != 8 || view.CanAdvance {
		t.Fatalf("unexpected start view %+v", view)
	}
	base := "/v1/quiz/sessions/" + view.SessionID

	var answered transitionBody
	srv.do(t, http.MethodPost, base+"/answers", "", answerRequest{StepID: "user-type", Value: "counselor"}, &answered)
	if !answered.Accepted || !answered.CanAdvance {
		t.Fatalf("expected accepted answer, got %+v", answered)
	}

	var rejected transitionBody
	srv.do(t, http.MethodPost, base+"/answers", "", answerRequest{StepID: "user-type", Value: "astronaut"}, &rejected)
	if rejected.Accepted {
		t.Fatalf("expected unknown option to be rejected")
	}

	var advanced transitionBody
	srv.do(t, http.MethodPost, base+"/advance", "", nil, &advanced)
	if !advanced.Done || advanced.Target != domain.TargetCounselorSignup || advanced.Route != "/auth/signup?type=counselor" {
		t.Fatalf("expected counselor sign-up target, got %+v", advanced)
	}

	var stored storedAnswersResponse
	if status := srv.do(t, http.MethodGet, "/v1/quiz/answers/client-1", "", nil, &stored); status != http.StatusOK {
		t.Fatalf("stored answers: expected 200, got %d", status)
	}
	if stored.Answers["user-type"].Value != "counselor" || len(stored.Answers) != 1 {
		t.Fatalf("unexpected stored answers %+v", stored.Answers)
	}
}

func TestQuizEndpointsErrors(t *testing.T) {
	srv := newTestServer(t)

	var body errorBody
	if status := srv.do(t, http.MethodGet, "/v1/quiz/sessions/missing", "", nil, &body); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", status)
	}
	if status := srv.do(t, http.MethodPost, "/v1/quiz/sessions", "", startRequest{QuizID: "nope"}, &body); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quiz, got %d", status)
	}
	if status := srv.do(t, http.MethodGet, "/v1/quiz/answers/nobody", "", nil, &body); status != http.StatusNotFound {
		t.Fatalf("expected 404 for missing answers, got %d", status)
	}

	var view domain.QuizView
	srv.do(t, http.MethodPost, "/v1/quiz/sessions", "", nil, &view)
	base := "/v1/quiz/sessions/" + view.SessionID
	if status := srv.do(t, http.MethodPost, base+"/answers", "", answerRequest{Value: "student"}, &body); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without stepId, got %d", status)
	}
	if status := srv.do(t, http.MethodPost, base+"/answers", "", answerRequest{StepID: "ghost", Value: "x"}, &body); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown step, got %d", status)
	}

	var retreat transitionBody
	srv.do(t, http.MethodPost, base+"/retreat", "", nil, &retreat)
	if retreat.Accepted || retreat.StepIndex != 0 {
		t.Fatalf("expected retreat at first step to be a no-op, got %+v", retreat)
	}
}

func TestAuthEndpointsLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var view domain.QuizView
	srv.do(t, http.MethodPost, "/v1/quiz/sessions", "", startRequest{ClientID: "client-9"}, &view)
	srv.do(t, http.MethodPost, "/v1/quiz/sessions/"+view.SessionID+"/answers", "", answerRequest{StepID: "user-type", Value: "counselor"}, nil)
	srv.do(t, http.MethodPost, "/v1/quiz/sessions/"+view.SessionID+"/advance", "", nil, nil)

	signUp := signUpRequest{
		Email:    "grace@example.com",
		Password: "secret123",
		ClientID: "client-9",
		Profile:  domain.ProfileFields{FirstName: "Grace", LastName: "Hopper", School: "Navy High", UserType: domain.RoleCounselor, JobRole: "Counselor"},
	}
	var created authResponse
	if status := srv.do(t, http.MethodPost, "/v1/auth/signup", "", signUp, &created); status != http.StatusOK {
		t.Fatalf("sign-up: expected 200, got %d", status)
	}
	if created.Token == "" || created.Target != domain.TargetCounselorDashboard || created.Redirect != "/dashboard/counselor" {
		t.Fatalf("unexpected sign-up response %+v", created)
	}
	profile, err := srv.profiles.GetProfile(context.Background(), created.User.UID)
	if err != nil {
		t.Fatalf("profile after sign-up: %v", err)
	}
	if profile.OnboardingAnswers["user-type"].Value != "counselor" {
		t.Fatalf("expected stored quiz answers on the profile, got %+v", profile.OnboardingAnswers)
	}

	var body errorBody
	if status := srv.do(t, http.MethodPost, "/v1/auth/signup", "", signUp, &body); status != http.StatusConflict || body.Kind != domain.KindDuplicateAccount {
		t.Fatalf("expected 409 duplicate, got %d %+v", status, body)
	}
	if status := srv.do(t, http.MethodPost, "/v1/auth/signin", "", signInRequest{Email: "grace@example.com", Password: "wrong-pass"}, &body); status != http.StatusUnauthorized || body.Kind != domain.KindInvalidCredentials {
		t.Fatalf("expected 401 invalid credentials, got %d %+v", status, body)
	}
	if status := srv.do(t, http.MethodPost, "/v1/auth/signin", "", signInRequest{Email: "not-an-email", Password: "x"}, &body); status != http.StatusBadRequest || body.Kind != domain.KindInvalidEmailFormat {
		t.Fatalf("expected 400 invalid email, got %d %+v", status, body)
	}

	var signedIn authResponse
	if status := srv.do(t, http.MethodPost, "/v1/auth/signin", "", signInRequest{Email: "grace@example.com", Password: "secret123"}, &signedIn); status != http.StatusOK {
		t.Fatalf("sign-in: expected 200, got %d", status)
	}

	var me domain.SessionUser
	if status := srv.do(t, http.MethodGet, "/v1/auth/me", signedIn.Token, nil, &me); status != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", status)
	}
	if me.FirstName != "Grace" || me.UserType != domain.RoleCounselor || me.School != "Navy High" {
		t.Fatalf("unexpected current user %+v", me)
	}

	if status := srv.do(t, http.MethodGet, "/v1/auth/me", "", nil, &body); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if status := srv.do(t, http.MethodPost, "/v1/auth/signout", signedIn.Token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("sign-out: expected 204, got %d", status)
	}
	if status := srv.do(t, http.MethodGet, "/v1/auth/me", signedIn.Token, nil, &body); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after sign-out, got %d", status)
	}
}

func TestFederatedSignInWithoutProfileRedirects(t *testing.T) {
	srv := newTestServer(t)
	token := federatedToken(t, "subject-1", "Alan Turing", "alan@example.com")

	var body errorBody
	status := srv.do(t, http.MethodPost, "/v1/auth/signin/federated", "", federatedRequest{IDToken: token}, &body)
	if status != http.StatusNotFound || body.Kind != domain.KindProfileMissing {
		t.Fatalf("expected 404 profile missing, got %d %+v", status, body)
	}
	if body.Target != domain.TargetOnboardingRedirect || body.Redirect != "/?signup=true" {
		t.Fatalf("expected onboarding redirect, got %+v", body)
	}

	var created authResponse
	if status := srv.do(t, http.MethodPost, "/v1/auth/signup/federated", "", federatedRequest{IDToken: token}, &created); status != http.StatusOK {
		t.Fatalf("federated sign-up: expected 200, got %d", status)
	}
	if created.User.FirstName != "Alan" || created.User.LastName != "Turing" || created.Target != domain.TargetStudentDashboard {
		t.Fatalf("unexpected federated sign-up %+v", created)
	}

	var signedIn authResponse
	if status := srv.do(t, http.MethodPost, "/v1/auth/signin/federated", "", federatedRequest{IDToken: token}, &signedIn); status != http.StatusOK {
		t.Fatalf("federated sign-in: expected 200, got %d", status)
	}
	if signedIn.User.UID != created.User.UID {
		t.Fatalf("expected the same account, got %s and %s", signedIn.User.UID, created.User.UID)
	}

	if status := srv.do(t, http.MethodPost, "/v1/auth/signin/federated", "", federatedRequest{}, &body); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without idToken, got %d", status)
	}
}

func federatedToken(t *testing.T, subject, name, email string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":   testFederatedIssuer,
		"sub":   subject,
		"name":  name,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testFederatedSecret))
	if err != nil {
		t.Fatalf("sign federated token: %v", err)
	}
	return token
}
