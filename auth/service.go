// Package auth coordinates the session lifecycle: login, silent refresh and
// logout against the remote auth API, the credential store and the persisted
// "trust this device" preference.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/gateway"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/metrics"
	"github.com/jrsteele09/go-auth-session/persist"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// Gateway is the remote auth API as the coordinator uses it
type Gateway interface {
	Login(ctx context.Context, username, password string) (*gateway.TokenResponse, error)
	Refresh(ctx context.Context) (*gateway.TokenResponse, error)
	Logout(ctx context.Context) error
}

var _ Gateway = (*gateway.Gateway)(nil)

// CacheResetter drops cached API response data after logout
type CacheResetter interface {
	ResetCache()
}

// CacheResetFunc adapts a plain function to CacheResetter
type CacheResetFunc func()

func (f CacheResetFunc) ResetCache() {
	f()
}

// Deps holds the required collaborators for the Service
type Deps struct {
	Gateway Gateway        // Remote auth API
	Store   *session.Store // Holds the access token
	Persist persist.Flag   // "Trust this device" preference
}

type LoginRequest struct {
	Username    string
	Password    string
	TrustDevice bool // Stored as the persist preference on success
}

// Service is the session coordinator. All methods are safe for concurrent use.
type Service struct {
	deps            Deps
	log             zerolog.Logger
	metrics         *metrics.Collectors
	resetters       []CacheResetter
	cacheResetDelay time.Duration
	decoder         *token.Decoder
	refreshGroup    singleflight.Group

	// commitMu orders store commits against RefreshIfStale's check-then-join,
	// so a caller either sees the new token or shares the refresh producing it.
	// Store subscribers are notified while it is held.
	commitMu sync.Mutex

	mu sync.Mutex
	// intent is bumped by every login and logout. A login or refresh that
	// finishes under a different intent than it started with is discarded.
	intent         uint64
	authenticating int
	refreshing     int
	loggingOut     int
	persistPref    bool
	resetTimer     *time.Timer
}

type ServiceOption func(*Service)

func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

func WithMetrics(m *metrics.Collectors) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCacheResetter registers a cache to reset after logout. May be repeated.
func WithCacheResetter(r CacheResetter) ServiceOption {
	return func(s *Service) {
		s.resetters = append(s.resetters, r)
	}
}

// WithCacheResetDelay defers the post-logout cache reset. Zero resets
// synchronously before Logout returns.
func WithCacheResetDelay(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.cacheResetDelay = d
	}
}

func WithDecoder(d *token.Decoder) ServiceOption {
	return func(s *Service) {
		s.decoder = d
	}
}

func NewService(deps Deps, options ...ServiceOption) (*Service, error) {
	if deps.Gateway == nil {
		return nil, errors.New("[NewService] Gateway is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[NewService] Store is required")
	}
	if deps.Persist == nil {
		return nil, errors.New("[NewService] Persist flag is required")
	}

	s := &Service{
		deps:    deps,
		log:     zerolog.Nop(),
		decoder: token.NewDecoder(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// State derives the lifecycle state. Work in flight takes precedence over
// the store contents: LoggingOut, then Authenticating, then RefreshingSilently.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.loggingOut > 0:
		return LoggingOut
	case s.authenticating > 0:
		return Authenticating
	case s.refreshing > 0:
		return RefreshingSilently
	}
	if _, ok := s.deps.Store.Get(); ok {
		return Authenticated
	}
	return Anonymous
}

func (s *Service) IsAuthenticated() bool {
	_, ok := s.deps.Store.Get()
	return ok
}

// AccessToken returns the current access token, if any
func (s *Service) AccessToken() (string, bool) {
	return s.deps.Store.Get()
}

// Identity decodes the current access token. It is derived on every call.
func (s *Service) Identity(ctx context.Context) (*token.Identity, error) {
	accessToken, ok := s.deps.Store.Get()
	if !ok {
		return nil, ErrNoSession
	}
	return s.decoder.Decode(ctx, accessToken)
}

// Start reads the persist preference once. When it is set and there is no
// session yet, a silent refresh is attempted. A failed refresh is expected
// (the long-lived credential expired) and is not reported.
func (s *Service) Start(ctx context.Context) State {
	pref, err := s.deps.Persist.Get()
	if err != nil {
		s.log.Warn().Err(err).Msg("could not read persist preference, assuming false")
		pref = false
	}
	s.mu.Lock()
	s.persistPref = pref
	s.mu.Unlock()

	if !pref || s.IsAuthenticated() {
		return s.State()
	}
	if _, err := s.Refresh(ctx); err != nil {
		s.log.Debug().Err(err).Msg("silent refresh at startup failed")
	}
	return s.State()
}

// Login exchanges credentials for a session. On success the persist
// preference is set to req.TrustDevice. On failure the previous session, if
// any, is left as it was.
func (s *Service) Login(ctx context.Context, req LoginRequest) error {
	s.mu.Lock()
	s.intent++
	intent := s.intent
	s.authenticating++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.authenticating--
		s.mu.Unlock()
	}()

	resp, err := s.deps.Gateway.Login(ctx, req.Username, req.Password)
	if err != nil {
		if autherrors.Is(err, ErrInvalidCredentials) || autherrors.Is(err, ErrMalformedRequest) {
			s.metrics.Login(metrics.OutcomeRejected)
		} else {
			s.metrics.Login(metrics.OutcomeFailure)
		}
		s.log.Info().Err(err).Str("username", req.Username).Msg("login failed")
		return err
	}

	if !s.commit(intent, utils.Value(resp.AccessToken)) {
		s.metrics.Login(metrics.OutcomeSuperseded)
		s.log.Info().Str("username", req.Username).Msg("login completed after a newer login or logout, discarded")
		return ErrSuperseded
	}

	if err := s.SetPersistPreference(req.TrustDevice); err != nil {
		s.log.Warn().Err(err).Bool("trust_device", req.TrustDevice).Msg("could not store persist preference")
	}
	s.metrics.Login(metrics.OutcomeSuccess)
	s.log.Info().Str("username", req.Username).Bool("trust_device", req.TrustDevice).Msg("logged in")
	return nil
}

// Refresh obtains a new access token using the long-lived credential.
// Concurrent callers share one round trip. When the long-lived credential is
// rejected the session is cleared and the error wraps ErrUnauthorized.
func (s *Service) Refresh(ctx context.Context) (string, error) {
	return s.awaitRefresh(ctx, s.joinRefresh(ctx))
}

func (s *Service) joinRefresh(ctx context.Context) <-chan singleflight.Result {
	return s.refreshGroup.DoChan(refreshKey, func() (any, error) {
		// shared by every waiter, so it must outlive any single caller
		return s.refresh(context.WithoutCancel(ctx))
	})
}

func (s *Service) awaitRefresh(ctx context.Context, ch <-chan singleflight.Result) (string, error) {
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RefreshIfStale refreshes only when staleToken is still the current token.
// A caller whose request was rejected with an older token gets the newer one
// without another round trip. With no session left, e.g. after a logout or a
// rejected refresh, it fails with ErrUnauthorized without calling the server.
func (s *Service) RefreshIfStale(ctx context.Context, staleToken string) (string, error) {
	s.commitMu.Lock()
	current, ok := s.deps.Store.Get()
	if !ok {
		s.commitMu.Unlock()
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, ErrNoSession)
	}
	if current != staleToken {
		s.commitMu.Unlock()
		return current, nil
	}
	ch := s.joinRefresh(ctx)
	s.commitMu.Unlock()

	accessToken, err := s.awaitRefresh(ctx, ch)
	if autherrors.Is(err, ErrSuperseded) {
		// a login won the race, use its token
		if current, ok := s.deps.Store.Get(); ok && current != staleToken {
			return current, nil
		}
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return accessToken, err
}

func (s *Service) refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	intent := s.intent
	gen := s.deps.Store.Generation()
	s.refreshing++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.refreshing--
		s.mu.Unlock()
	}()

	resp, err := s.deps.Gateway.Refresh(ctx)
	if err != nil {
		if !autherrors.Is(err, ErrInvalidCredentials) {
			s.metrics.Refresh(metrics.OutcomeFailure)
			return "", err
		}
		// long-lived credential is gone: forced logout
		s.metrics.Refresh(metrics.OutcomeRejected)
		if !s.clear(intent, gen) {
			return "", ErrSuperseded
		}
		s.log.Info().Err(err).Msg("refresh rejected, session cleared")
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	accessToken := utils.Value(resp.AccessToken)
	if !s.commit(intent, accessToken) {
		s.metrics.Refresh(metrics.OutcomeSuperseded)
		s.log.Debug().Msg("refresh completed after a login or logout, discarded")
		return "", ErrSuperseded
	}
	s.metrics.Refresh(metrics.OutcomeSuccess)
	return accessToken, nil
}

// commit stores accessToken if no login or logout started since intent
func (s *Service) commit(intent uint64, accessToken string) bool {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if s.intent != intent {
		s.mu.Unlock()
		return false
	}
	gen := s.deps.Store.Generation()
	s.mu.Unlock()
	return s.deps.Store.CompareAndSet(gen, accessToken)
}

// clear drops the session if neither a login, a logout nor another commit
// happened since intent and gen were observed
func (s *Service) clear(intent, gen uint64) bool {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	current := s.intent == intent
	s.mu.Unlock()
	if !current {
		return false
	}
	if s.deps.Store.CompareAndClear(gen) {
		return true
	}
	// a concurrent commit under the same intent, e.g. Set by a collaborator
	_, ok := s.deps.Store.Get()
	return !ok
}

// Logout tears down the local session and asks the server to invalidate the
// long-lived credential. Server failures are logged only and the local
// teardown always happens. When there is nothing to log out of it is a no-op.
// The persist preference is never touched.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.intent++
	_, hasSession := s.deps.Store.Get()
	busy := s.authenticating > 0 || s.refreshing > 0 || s.loggingOut > 0
	if !hasSession && !busy {
		s.mu.Unlock()
		s.deps.Store.Clear()
		s.metrics.Logout(metrics.OutcomeNoop)
		return nil
	}
	s.loggingOut++
	s.mu.Unlock()

	s.deps.Store.Clear()

	if err := s.deps.Gateway.Logout(ctx); err != nil {
		s.metrics.Logout(metrics.OutcomeFailure)
		s.log.Warn().Err(err).Msg("logout call failed, local session cleared anyway")
	} else {
		s.metrics.Logout(metrics.OutcomeSuccess)
	}

	s.mu.Lock()
	s.loggingOut--
	s.mu.Unlock()

	s.resetCaches()
	s.log.Info().Msg("logged out")
	return nil
}

func (s *Service) resetCaches() {
	if len(s.resetters) == 0 {
		return
	}
	reset := func() {
		for _, r := range s.resetters {
			r.ResetCache()
		}
	}
	if s.cacheResetDelay <= 0 {
		reset()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetTimer != nil {
		s.resetTimer.Stop()
	}
	s.resetTimer = time.AfterFunc(s.cacheResetDelay, reset)
}

// Close stops a pending delayed cache reset, running it immediately
func (s *Service) Close() {
	s.mu.Lock()
	timer := s.resetTimer
	s.resetTimer = nil
	s.mu.Unlock()

	if timer != nil && timer.Stop() {
		for _, r := range s.resetters {
			r.ResetCache()
		}
	}
}

// SetPersistPreference stores the "trust this device" flag
func (s *Service) SetPersistPreference(trustDevice bool) error {
	if err := s.deps.Persist.Set(trustDevice); err != nil {
		return errors.Wrap(err, "[SetPersistPreference]")
	}
	s.mu.Lock()
	s.persistPref = trustDevice
	s.mu.Unlock()
	return nil
}

// PersistPreference reads the durable flag, falling back to the last known
// value when storage is unreadable
func (s *Service) PersistPreference() bool {
	pref, err := s.deps.Persist.Get()
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.persistPref
	}
	return pref
}
