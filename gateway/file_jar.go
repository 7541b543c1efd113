package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// FileJar is a cookie jar that keeps the API origin's persistent cookies on
// disk, the way a browser profile does. Session cookies (no expiry) are kept
// in memory only. Callers never see cookie values.
type FileJar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	path    string
	origin  *url.URL
	entries map[string]storedCookie
	nowFunc func() time.Time
	log     zerolog.Logger
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
	SameSite int       `json:"same_site,omitempty"`
}

var _ http.CookieJar = (*FileJar)(nil)

type FileJarOption func(*FileJar)

// WithJarLogger reports cookies that could not be saved
func WithJarLogger(log zerolog.Logger) FileJarOption {
	return func(j *FileJar) {
		j.log = log
	}
}

// NewFileJar loads any unexpired cookies previously saved for origin
func NewFileJar(path, origin string, options ...FileJarOption) (*FileJar, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid origin %q", origin)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	j := &FileJar{
		jar:     jar,
		path:    path,
		origin:  &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"},
		entries: make(map[string]storedCookie),
		nowFunc: time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(j)
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	if !strings.EqualFold(u.Host, j.origin.Host) {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.nowFunc()
	changed := false
	for _, c := range cookies {
		cookiePath := c.Path
		if cookiePath == "" || cookiePath[0] != '/' {
			cookiePath = defaultCookiePath(u.Path)
		}
		key := c.Name + "|" + cookiePath

		var expires time.Time
		switch {
		case c.MaxAge < 0:
			expires = now // deleted
		case c.MaxAge > 0:
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		default:
			expires = c.Expires
		}

		if expires.IsZero() {
			// session cookie: drop any persisted copy
			if _, ok := j.entries[key]; ok {
				delete(j.entries, key)
				changed = true
			}
			continue
		}
		if !expires.After(now) {
			if _, ok := j.entries[key]; ok {
				delete(j.entries, key)
				changed = true
			}
			continue
		}

		j.entries[key] = storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     cookiePath,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: int(c.SameSite),
		}
		changed = true
	}

	if changed {
		if err := j.saveLocked(); err != nil {
			j.log.Warn().Err(err).Str("path", j.path).Msg("could not save cookie jar, the login will not survive a restart")
		}
	}
}

// Clear forgets every cookie stored for the origin, in memory and on disk
func (j *FileJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	expired := make([]*http.Cookie, 0, len(j.entries))
	for _, sc := range j.entries {
		expired = append(expired, &http.Cookie{Name: sc.Name, Path: sc.Path, MaxAge: -1})
	}
	if len(expired) > 0 {
		j.jar.SetCookies(j.origin, expired)
	}
	j.entries = make(map[string]storedCookie)
	return j.saveLocked()
}

func (j *FileJar) load() error {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cookie jar %s: %w", j.path, err)
	}

	var stored []storedCookie
	if len(data) > 0 {
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("decode cookie jar %s: %w", j.path, err)
		}
	}

	now := j.nowFunc()
	var live []*http.Cookie
	for _, sc := range stored {
		if !sc.Expires.After(now) {
			continue
		}
		j.entries[sc.Name+"|"+sc.Path] = sc
		live = append(live, &http.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
			SameSite: http.SameSite(sc.SameSite),
		})
	}
	if len(live) > 0 {
		j.jar.SetCookies(j.origin, live)
	}
	return nil
}

func (j *FileJar) saveLocked() error {
	stored := make([]storedCookie, 0, len(j.entries))
	for _, sc := range j.entries {
		stored = append(stored, sc)
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return err
	}
	tempFile := j.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tempFile, j.path)
}

// defaultCookiePath follows RFC 6265 section 5.1.4
func defaultCookiePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
