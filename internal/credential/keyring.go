package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "gmail-notifier"

// ErrNoCookie is returned when no session cookie is stored for an account.
var ErrNoCookie = errors.New("no gmail session stored; run 'gmailnotifier login'")

// ErrInvalidCookie is returned for a value that is not a Cookie header.
var ErrInvalidCookie = errors.New("invalid cookie header")

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/gmail-notifier/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("gmail-notifier-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Store keeps Gmail session cookies, one per signed-in account slot.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the system keyring.
func Open() (*Store, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return New(ring), nil
}

// New returns a Store backed by ring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// CookieKey is the keyring key holding the cookie for account slot n.
func CookieKey(account int) string {
	return fmt.Sprintf("cookie/u/%d", account)
}

// Cookie returns the stored Cookie header for account.
func (s *Store) Cookie(account int) (string, error) {
	item, err := s.ring.Get(CookieKey(account))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoCookie
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", CookieKey(account), err)
	}
	return string(item.Data), nil
}

// SetCookie stores a Cookie header for account. A leading "Cookie:" as
// copied from browser dev tools is dropped.
func (s *Store) SetCookie(account int, header string) error {
	header, err := NormalizeCookie(header)
	if err != nil {
		return err
	}

	err = s.ring.Set(keyring.Item{
		Key:         CookieKey(account),
		Data:        []byte(header),
		Label:       "Gmail session",
		Description: fmt.Sprintf("Cookie header for mail.google.com account %d", account),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", CookieKey(account), err)
	}
	return nil
}

// DeleteCookie removes the cookie for account.
func (s *Store) DeleteCookie(account int) error {
	if _, err := s.Cookie(account); err != nil {
		return err
	}
	if err := s.ring.Remove(CookieKey(account)); err != nil {
		return fmt.Errorf("deleting credential %q: %w", CookieKey(account), err)
	}
	return nil
}

// NormalizeCookie trims header and checks it holds name=value pairs.
func NormalizeCookie(header string) (string, error) {
	header = strings.TrimSpace(header)
	if len(header) >= len("cookie:") && strings.EqualFold(header[:len("cookie:")], "cookie:") {
		header = strings.TrimSpace(header[len("cookie:"):])
	}
	if header == "" || !strings.Contains(header, "=") {
		return "", ErrInvalidCookie
	}
	return header, nil
}
