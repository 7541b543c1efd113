package authfake

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
)

// StoredRefreshToken is the server-side record behind the opaque cookie value
type StoredRefreshToken struct {
	Token    string    // The random token string (sent to the client as a cookie)
	UserID   string
	Username string
	Iat      time.Time
}

// RefreshRepo keeps refresh tokens keyed by token, one per user
type RefreshRepo struct {
	tokens  map[string]*StoredRefreshToken
	userIDs map[string]string // user ID to token
	lock    sync.RWMutex
}

func NewRefreshRepo() *RefreshRepo {
	return &RefreshRepo{
		tokens:  make(map[string]*StoredRefreshToken),
		userIDs: make(map[string]string),
	}
}

func (tr *RefreshRepo) Upsert(rt *StoredRefreshToken) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[rt.Token] = rt
	tr.userIDs[rt.UserID] = rt.Token
}

func (tr *RefreshRepo) Delete(token string) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return
	}
	if tr.userIDs[rt.UserID] == token {
		delete(tr.userIDs, rt.UserID)
	}
	delete(tr.tokens, token)
}

func (tr *RefreshRepo) Get(token string) (*StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	return rt, nil
}

func (tr *RefreshRepo) GetByUserID(userID string) (*StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	token, ok := tr.userIDs[userID]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	return tr.tokens[token], nil
}

// DeleteAll drops every refresh token, as if they all expired at once
func (tr *RefreshRepo) DeleteAll() {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens = make(map[string]*StoredRefreshToken)
	tr.userIDs = make(map[string]string)
}

// RefreshManager handles refresh token creation and validation
type RefreshManager struct {
	repo    *RefreshRepo
	expiry  time.Duration
	nowFunc func() time.Time
}

func NewRefreshManager(repo *RefreshRepo, expiry time.Duration, nowFunc func() time.Time) *RefreshManager {
	return &RefreshManager{repo: repo, expiry: expiry, nowFunc: nowFunc}
}

// Create generates a new refresh token, replacing the user's previous one
func (m *RefreshManager) Create(user *User) (string, error) {
	if existing, err := m.repo.GetByUserID(user.ID); err == nil && existing != nil {
		m.repo.Delete(existing.Token)
	}

	tokenBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	m.repo.Upsert(&StoredRefreshToken{
		Token:    tokenStr,
		UserID:   user.ID,
		Username: user.Username,
		Iat:      m.nowFunc(),
	})
	return tokenStr, nil
}

// Validate returns the stored record for a live token
func (m *RefreshManager) Validate(token string) (*StoredRefreshToken, error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, err
	}
	if m.nowFunc().Sub(rt.Iat) > m.expiry {
		m.repo.Delete(token)
		return nil, ErrRefreshTokenExpired
	}
	return rt, nil
}

func (m *RefreshManager) Delete(token string) {
	m.repo.Delete(token)
}

func (m *RefreshManager) Expiry() time.Duration {
	return m.expiry
}
