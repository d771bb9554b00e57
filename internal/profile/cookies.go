package profile

import (
	"encoding/json"
	"net/http"
	"os"
	"time"
)

// storedCookie is the on-disk representation of a session cookie.
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Domain  string    `json:"domain,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
	Secure  bool      `json:"secure,omitempty"`
}

// SaveCookies persists session cookies so that sdesk, sdeskd and sdeskctl
// share one authenticated session per profile.
func SaveCookies(name string, cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Domain:  c.Domain,
			Expires: c.Expires,
			Secure:  c.Secure,
		})
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := EnsureDir(name); err != nil {
		return err
	}
	return os.WriteFile(CookiePath(name), data, 0600)
}

// LoadCookies reads persisted session cookies. A missing file yields an
// empty slice, not an error: the profile is simply not logged in yet.
func LoadCookies(name string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(CookiePath(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		cookies = append(cookies, &http.Cookie{
			Name:    s.Name,
			Value:   s.Value,
			Path:    s.Path,
			Domain:  s.Domain,
			Expires: s.Expires,
			Secure:  s.Secure,
		})
	}
	return cookies, nil
}

// ClearCookies removes the persisted session, used on logout and on
// unrecoverable auth failure.
func ClearCookies(name string) error {
	err := os.Remove(CookiePath(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
