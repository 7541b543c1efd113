package authfake

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RoleType is an opaque role label carried in access tokens
type RoleType string

const (
	RoleEmployee RoleType = "Employee"
	RoleManager  RoleType = "Manager"
	RoleAdmin    RoleType = "Admin"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID           string     `json:"id,omitempty"`
	Username     string     `json:"username,omitempty"`
	PasswordHash string     `json:"-"` // never serialize
	Roles        []RoleType `json:"roles,omitempty"`
	Active       bool       `json:"active"`
}

func (u *User) RoleLabels() []string {
	labels := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		labels = append(labels, string(r))
	}
	return labels
}

func HashPassword(password string) (string, error) {
	// MinCost keeps test suites fast; this server is never deployed
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// UserRepo is an in-memory user table keyed by username
type UserRepo struct {
	users map[string]*User
	lock  sync.RWMutex
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]*User)}
}

func (ur *UserRepo) Upsert(user *User) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.Username] = user
}

func (ur *UserRepo) GetByUsername(username string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// SetActive disables or re-enables a login
func (ur *UserRepo) SetActive(username string, active bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[username]
	if !ok {
		return ErrUserNotFound
	}
	user.Active = active
	return nil
}
