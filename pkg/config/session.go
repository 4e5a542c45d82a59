package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/scrypt"

	"narrate/pkg/logx"
)

// Session file encryption parameters.
const (
	saltSize  = 16
	nonceSize = 12
	scryptN   = 32768 // 2^15
	scryptR   = 8
	scryptP   = 1
	keySize   = 32 // AES-256
)

// ErrNoSession is returned when no session has been saved.
var ErrNoSession = errors.New("no saved session")

// Session is the signed-in state kept between CLI invocations.
type Session struct {
	BaseURL string          `json:"base_url"`
	Email   string          `json:"email,omitempty"`
	Cookies []SessionCookie `json:"cookies"`
	SavedAt time.Time       `json:"saved_at"`
}

// SessionCookie is the persisted form of an http.Cookie.
type SessionCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// CookiesFrom converts jar cookies for storage.
func CookiesFrom(cookies []*http.Cookie) []SessionCookie {
	out := make([]SessionCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, SessionCookie{
			Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain,
			Expires: c.Expires, Secure: c.Secure, HTTPOnly: c.HttpOnly,
		})
	}
	return out
}

// HTTPCookies converts stored cookies back for a jar, dropping expired ones.
func (s Session) HTTPCookies(now time.Time) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		out = append(out, &http.Cookie{
			Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain,
			Expires: c.Expires, Secure: c.Secure, HttpOnly: c.HTTPOnly,
		})
	}
	return out
}

// SessionPath is the session file inside dir.
func SessionPath(dir string) string {
	return filepath.Join(dir, SessionFile)
}

// SessionExists reports whether a session file is present in dir.
func SessionExists(dir string) bool {
	_, err := os.Stat(SessionPath(dir))
	return err == nil
}

// SaveSession encrypts s with password and writes it to dir with 0600 permissions.
func SaveSession(dir, password string, s Session) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	plaintext, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	data, err := seal([]byte(password), plaintext)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(SessionPath(dir), data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// LoadSession decrypts the session saved in dir.
func LoadSession(dir, password string) (Session, error) {
	path := SessionPath(dir)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to stat session file: %w", err)
	}
	if info.Mode().Perm() != 0600 {
		logx.Warnf("Session file has permissions %04o, resetting to 0600", info.Mode().Perm())
		if chmodErr := os.Chmod(path, 0600); chmodErr != nil {
			return Session{}, fmt.Errorf("failed to fix session file permissions: %w", chmodErr)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session file: %w", err)
	}
	plaintext, err := open([]byte(password), data)
	if err != nil {
		return Session{}, err
	}

	var s Session
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return Session{}, fmt.Errorf("failed to parse session: %w", err)
	}
	return s, nil
}

// DeleteSession removes the session file. A missing file is not an error.
func DeleteSession(dir string) error {
	if err := os.Remove(SessionPath(dir)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// seal produces [salt][nonce][ciphertext+tag].
func seal(password, plaintext []byte) ([]byte, error) {
	defer zero(password)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	return append(out, ciphertext...), nil
}

func open(password, data []byte) ([]byte, error) {
	defer zero(password)

	if len(data) < saltSize+nonceSize+16 { // 16 is the GCM tag size
		return nil, fmt.Errorf("session file is corrupted or invalid format (too small)")
	}
	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[saltSize+nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong password or corrupted file)")
	}
	return plaintext, nil
}

func newGCM(password, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
