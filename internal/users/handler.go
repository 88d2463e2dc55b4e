package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/trackfit/internal/fitness"
	"github.com/2beens/trackfit/internal/store"
	"github.com/2beens/trackfit/internal/telemetry/metrics"
	"github.com/2beens/trackfit/internal/telemetry/tracing"
	"github.com/2beens/trackfit/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=users_mocks_test.go -package=users_test

// AuthTokenHeader carries the session token on every authed request.
const AuthTokenHeader = "X-TRACKFIT-TOKEN"

var ErrUserExists = store.ErrUserExists

type usersRepo interface {
	FindUser(ctx context.Context, email string) (*fitness.User, error)
	AddUser(ctx context.Context, user fitness.User) error
	CurrentUser(ctx context.Context) string
	SetCurrentUser(ctx context.Context, email string) error
	Profile(ctx context.Context) fitness.Profile
	SetProfile(ctx context.Context, profile fitness.Profile) error
}

type sessionsService interface {
	Login(ctx context.Context, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type Handler struct {
	repo        usersRepo
	authService sessionsService
	metrics     *metrics.Manager
}

func NewHandler(
	repo usersRepo,
	authService sessionsService,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:        repo,
		authService: authService,
		metrics:     metricsManager,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (handler *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.signup")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var signupReq signupRequest
	if err := json.NewDecoder(r.Body).Decode(&signupReq); err != nil {
		log.Tracef("signup, unmarshal json params: %s", err)
		http.Error(w, "signup failed", http.StatusBadRequest)
		return
	}

	signupReq.Name = strings.TrimSpace(signupReq.Name)
	signupReq.Email = fitness.NormalizeEmail(signupReq.Email)
	switch {
	case signupReq.Name == "":
		http.Error(w, "error, name empty", http.StatusBadRequest)
		return
	case signupReq.Email == "":
		http.Error(w, "error, email empty", http.StatusBadRequest)
		return
	case signupReq.Password == "":
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(signupReq.Password)
	if err != nil {
		log.Errorf("signup, hash password: %s", err)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}

	newUser := fitness.User{
		Name:         signupReq.Name,
		Email:        signupReq.Email,
		PasswordHash: passwordHash,
	}
	if err := handler.repo.AddUser(ctx, newUser); err != nil {
		if errors.Is(err, ErrUserExists) {
			http.Error(w, "error, user already exists", http.StatusConflict)
			return
		}
		log.Errorf("signup, add user: %s", err)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}

	// a fresh profile inherits the signup name
	if profile := handler.repo.Profile(ctx); profile.Name == "" {
		profile.Name = signupReq.Name
		if err := handler.repo.SetProfile(ctx, profile); err != nil {
			log.Errorf("signup, backfill profile name: %s", err)
		}
	}

	if err := handler.repo.SetCurrentUser(ctx, signupReq.Email); err != nil {
		log.Errorf("signup, set current user: %s", err)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}

	token, err := handler.authService.Login(ctx, time.Now())
	if err != nil {
		log.Errorf("signup, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterSignups.Inc()
	log.Tracef("new signup: %s", signupReq.Email)
	pkg.WriteResponseBytes(
		w, pkg.ContentType.JSON,
		[]byte(fmt.Sprintf(`{"token": "%s", "email": "%s"}`, token, signupReq.Email)),
		http.StatusCreated,
	)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var loginReq loginRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			http.Error(w, "login failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		loginReq = loginRequest{
			Email:    r.Form.Get("email"),
			Password: r.Form.Get("password"),
		}
	}

	loginReq.Email = fitness.NormalizeEmail(loginReq.Email)
	if loginReq.Email == "" {
		http.Error(w, "error, email empty", http.StatusBadRequest)
		return
	}
	if loginReq.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}

	user, err := handler.repo.FindUser(ctx, loginReq.Email)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		log.Errorf("login, find user: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	// same error for a missing user and a wrong password, so the
	// response does not leak which emails have an account
	if user == nil || !pkg.CheckPasswordHash(loginReq.Password, user.PasswordHash) {
		handler.metrics.CounterFailedLogins.Inc()
		userIP, ipErr := pkg.ReadUserIP(r)
		if ipErr != nil {
			userIP = "unknown"
		}
		log.Tracef("failed login attempt for [%s] from: %s", loginReq.Email, userIP)
		http.Error(w, "error, invalid email or password", http.StatusUnauthorized)
		return
	}

	if err := handler.repo.SetCurrentUser(ctx, user.Email); err != nil {
		log.Errorf("login, set current user: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	token, err := handler.authService.Login(ctx, time.Now())
	if err != nil {
		log.Errorf("login failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterLogins.Inc()
	log.Trace("new login success")
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"token": "%s"}`, token))
}

// HandleMe tells the client who is logged in, for the header badge.
func (handler *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.me")
	defer span.End()

	currentUser := handler.repo.CurrentUser(ctx)
	if currentUser == "" {
		http.Error(w, "no user logged in", http.StatusUnauthorized)
		return
	}

	user, err := handler.repo.FindUser(ctx, currentUser)
	if err != nil {
		log.Errorf("get current user [%s]: %s", currentUser, err)
		http.Error(w, "failed to get current user", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"name": "%s", "email": "%s"}`, user.Name, user.Email))
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	authToken := r.Header.Get(AuthTokenHeader)
	if authToken == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	loggedOut, err := handler.authService.Logout(ctx, authToken)
	if err != nil {
		log.Tracef("[failed logout] => %s: %s", r.URL.Path, err)
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if !loggedOut {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if err := handler.repo.SetCurrentUser(ctx, ""); err != nil {
		log.Errorf("logout, clear current user: %s", err)
	}

	log.Printf("logout for [%s] success", authToken)
	pkg.WriteTextResponseOK(w, "logged-out")
}
