package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"
)

const CookieStorageKey = "sessionCookies"

// Storage is the durable key/value store cookies are mirrored into.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// SessionJar is an http.CookieJar that keeps the API's cookies across
// restarts, the way a browser keeps its session cookie.
type SessionJar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	base    *url.URL
	storage Storage
	cookies map[string]storedCookie
	now     func() time.Time
	logger  *log.Logger
}

// NewSessionJar restores the cookies kept in storage for base. logger may be
// nil.
func NewSessionJar(ctx context.Context, storage Storage, base *url.URL, logger *log.Logger) (*SessionJar, error) {
	if logger == nil {
		logger = log.Default()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	s := &SessionJar{
		jar:     jar,
		base:    base,
		storage: storage,
		cookies: make(map[string]storedCookie),
		now:     time.Now,
		logger:  logger,
	}
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SessionJar) restore(ctx context.Context) error {
	raw, ok, err := s.storage.GetItem(ctx, CookieStorageKey)
	if err != nil || !ok {
		return err
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		// A corrupt entry only costs a fresh login.
		return s.storage.RemoveItem(ctx, CookieStorageKey)
	}

	now := s.now()
	restored := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		s.cookies[c.Name] = c
		restored = append(restored, &http.Cookie{Name: c.Name, Value: c.Value, Path: cookiePath(c.Path), Expires: c.Expires})
	}
	s.jar.SetCookies(s.base, restored)
	return nil
}

func (s *SessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jar.SetCookies(u, cookies)
	if u.Host != s.base.Host {
		return
	}

	now := s.now()
	for _, c := range cookies {
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if c.MaxAge < 0 || (!expires.IsZero() && !expires.After(now)) {
			delete(s.cookies, c.Name)
			continue
		}
		s.cookies[c.Name] = storedCookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: expires}
	}
	if err := s.persist(context.Background()); err != nil {
		s.logger.Printf("api: persist cookies: %v", err)
	}
}

func (s *SessionJar) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar.Cookies(u)
}

// Reset forgets every cookie, in memory and on disk.
func (s *SessionJar) Reset(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = jar
	s.cookies = make(map[string]storedCookie)
	return s.storage.RemoveItem(ctx, CookieStorageKey)
}

func (s *SessionJar) persist(ctx context.Context) error {
	if len(s.cookies) == 0 {
		return s.storage.RemoveItem(ctx, CookieStorageKey)
	}

	names := make([]string, 0, len(s.cookies))
	for name := range s.cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	stored := make([]storedCookie, 0, len(names))
	for _, name := range names {
		stored = append(stored, s.cookies[name])
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	return s.storage.SetItem(ctx, CookieStorageKey, string(payload))
}

func cookiePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
