package authfake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const (
	RouteLogin   = "/auth"
	RouteRefresh = "/auth/refresh"
	RouteLogout  = "/auth/logout"
	RouteNotes   = "/notes"
	RouteUsers   = "/users"
)

const (
	DemoAdmin    = "testAdmin"
	DemoEmployee = "testEmployee"
	DemoPassword = "1234test"
)

// Server is an in-process stand-in for the dashboard's remote auth API. It
// issues HS256 access tokens, keeps the refresh token in an HttpOnly cookie
// and exposes hooks for driving failure and race scenarios.
type Server struct {
	users       *UserRepo
	tokens      *TokenCreator
	refreshRepo *RefreshRepo
	refresh     *RefreshManager
	revoked     *RevokedTokenCache
	notes       *NoteRepo
	mux         *http.ServeMux
	log         zerolog.Logger

	nowFunc       func() time.Time
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	reauthStatus  int
	seed          []seedUser

	mu             sync.Mutex
	calls          map[string]int
	faults         map[string][]int
	issued         map[string]time.Time // jti to expiry
	refreshGate    chan struct{}
	refreshStarted chan struct{}
}

type seedUser struct {
	username string
	password string
	roles    []RoleType
}

type ServerOption func(*Server)

// WithUser adds an active account. Without any, the demo accounts are seeded.
func WithUser(username, password string, roles ...RoleType) ServerOption {
	return func(s *Server) {
		s.seed = append(s.seed, seedUser{username: username, password: password, roles: roles})
	}
}

func WithSecret(secret []byte) ServerOption {
	return func(s *Server) {
		s.secret = secret
	}
}

func WithAccessTokenExpiry(d time.Duration) ServerOption {
	return func(s *Server) {
		s.accessExpiry = d
	}
}

func WithRefreshTokenExpiry(d time.Duration) ServerOption {
	return func(s *Server) {
		s.refreshExpiry = d
	}
}

func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowFunc = nowFunc
	}
}

// WithReauthStatus sets the status protected routes answer with for an
// expired or revoked access token (default 401)
func WithReauthStatus(status int) ServerOption {
	return func(s *Server) {
		s.reauthStatus = status
	}
}

func WithLogger(log zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

func NewServer(options ...ServerOption) (*Server, error) {
	s := &Server{
		users:          NewUserRepo(),
		refreshRepo:    NewRefreshRepo(),
		revoked:        NewRevokedTokenCache(),
		notes:          NewNoteRepo(),
		mux:            http.NewServeMux(),
		log:            zerolog.Nop(),
		nowFunc:        time.Now,
		secret:         []byte("dev-access-secret"),
		accessExpiry:   15 * time.Minute,
		refreshExpiry:  7 * 24 * time.Hour,
		reauthStatus:   http.StatusUnauthorized,
		calls:          make(map[string]int),
		faults:         make(map[string][]int),
		issued:         make(map[string]time.Time),
		refreshStarted: make(chan struct{}, 64),
	}
	for _, opt := range options {
		opt(s)
	}
	if len(s.seed) == 0 {
		s.seed = []seedUser{
			{username: DemoAdmin, password: DemoPassword, roles: []RoleType{RoleEmployee, RoleManager, RoleAdmin}},
			{username: DemoEmployee, password: DemoPassword, roles: []RoleType{RoleEmployee}},
		}
	}

	s.tokens = NewTokenCreator(s.secret, s.accessExpiry, s.nowFunc)
	s.refresh = NewRefreshManager(s.refreshRepo, s.refreshExpiry, s.nowFunc)

	for _, su := range s.seed {
		hash, err := HashPassword(su.password)
		if err != nil {
			return nil, fmt.Errorf("[NewServer] hash password for %s: %w", su.username, err)
		}
		s.users.Upsert(&User{Username: su.username, PasswordHash: hash, Roles: su.roles, Active: true})
	}

	s.initRoutes()
	return s, nil
}

// Start runs the server on a loopback listener for the duration of the test
func Start(t testing.TB, options ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(options...)
	if err != nil {
		t.Fatalf("authfake: %v", err)
	}
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		s.releaseRefresh()
		ts.Close()
	})
	return s, ts
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	route := func(pattern, path string, h http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) {
		mw = append([]func(http.HandlerFunc) http.HandlerFunc{s.LoggingMiddleware, s.CountMiddleware(path)}, mw...)
		s.mux.HandleFunc(pattern, ChainMiddleware(h, mw...))
	}

	route("POST "+RouteLogin, RouteLogin, s.LoginHandler())
	route("GET "+RouteRefresh, RouteRefresh, s.RefreshHandler())
	route("POST "+RouteLogout, RouteLogout, s.LogoutHandler())
	route("GET "+RouteNotes, RouteNotes, s.ListNotesHandler(), s.RequireAuth)
	route("POST "+RouteNotes, RouteNotes, s.CreateNoteHandler(), s.RequireAuth)
	route("GET "+RouteUsers, RouteUsers, s.ListUsersHandler(), s.RequireAuth)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "All fields are required")
			return
		}
		if req.Username == "" || req.Password == "" {
			writeMessage(w, http.StatusBadRequest, "All fields are required")
			return
		}

		user, err := s.users.GetByUsername(req.Username)
		if err != nil || !user.Active || !CheckPasswordHash(req.Password, user.PasswordHash) {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		accessToken, err := s.issueAccessToken(user)
		if err != nil {
			s.log.Error().Err(err).Str("username", user.Username).Msg("failed to create access token")
			writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		refreshToken, err := s.refresh.Create(user)
		if err != nil {
			s.log.Error().Err(err).Str("username", user.Username).Msg("failed to create refresh token")
			writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		s.setRefreshCookie(w, r, refreshToken)
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken})
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.waitRefreshGate(r); err != nil {
			return
		}

		cookie, err := r.Cookie(RefreshCookieName)
		if err != nil || cookie.Value == "" {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		stored, err := s.refresh.Validate(cookie.Value)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := s.users.GetByUsername(stored.Username)
		if err != nil || !user.Active {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		accessToken, err := s.issueAccessToken(user)
		if err != nil {
			s.log.Error().Err(err).Str("username", user.Username).Msg("failed to create access token")
			writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(RefreshCookieName)
		if err != nil || cookie.Value == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.refresh.Delete(cookie.Value)
		s.clearRefreshCookie(w, r)
		writeMessage(w, http.StatusOK, "Cookie cleared")
	}
}

type createNoteRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (s *Server) ListNotesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.notes.List())
	}
}

func (s *Server) CreateNoteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" || req.Text == "" {
			writeMessage(w, http.StatusBadRequest, "All fields are required")
			return
		}
		username, _ := r.Context().Value(ContextKeyUsername).(string)
		note := s.notes.Create(&Note{User: username, Title: req.Title, Text: req.Text, CreatedAt: s.nowFunc()})
		writeJSON(w, http.StatusCreated, note)
	}
}

type userView struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Active   bool     `json:"active"`
}

func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out []userView
		for _, su := range s.seed {
			u, err := s.users.GetByUsername(su.username)
			if err != nil {
				continue
			}
			out = append(out, userView{ID: u.ID, Username: u.Username, Roles: u.RoleLabels(), Active: u.Active})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) issueAccessToken(user *User) (string, error) {
	signed, jti, err := s.tokens.CreateAccessToken(user)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.issued[jti] = s.nowFunc().Add(s.accessExpiry)
	s.mu.Unlock()
	return signed, nil
}

// record counts a call to route and pops a queued fault status, if any
func (s *Server) record(route string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[route]++
	queued := s.faults[route]
	if len(queued) == 0 {
		return 0, false
	}
	s.faults[route] = queued[1:]
	return queued[0], true
}

func (s *Server) waitRefreshGate(r *http.Request) error {
	s.mu.Lock()
	gate := s.refreshGate
	s.mu.Unlock()

	select {
	case s.refreshStarted <- struct{}{}:
	default:
	}
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-r.Context().Done():
		return r.Context().Err()
	}
}

// Calls reports how many requests reached route, e.g. RouteRefresh
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// FailNext makes the next request to route answer with status
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = append(s.faults[route], status)
}

// BlockRefresh holds refresh requests until the returned release is called
func (s *Server) BlockRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.refreshGate == gate {
				s.refreshGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Server) releaseRefresh() {
	s.mu.Lock()
	gate := s.refreshGate
	s.refreshGate = nil
	s.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

// RefreshStarted receives once per refresh request that reached the handler
func (s *Server) RefreshStarted() <-chan struct{} {
	return s.refreshStarted
}

// RevokeAllAccessTokens makes every access token issued so far unusable
func (s *Server) RevokeAllAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, exp := range s.issued {
		s.revoked.Add(jti, exp)
	}
	s.revoked.Cleanup(s.nowFunc())
}

// ExpireRefreshTokens drops every long-lived credential server side
func (s *Server) ExpireRefreshTokens() {
	s.refreshRepo.DeleteAll()
}

// DisableUser deactivates an account; its refresh token stops working
func (s *Server) DisableUser(username string) error {
	return s.users.SetActive(username, false)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}
