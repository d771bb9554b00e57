package profile

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

// withTempHome points os.UserHomeDir at a temp dir for the test's duration.
func withTempHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	return tmp
}

func TestSaveAndLoadCookies(t *testing.T) {
	withTempHome(t)

	in := []*http.Cookie{
		{Name: "session", Value: "abc123", Path: "/"},
		{Name: "csrf_access_token", Value: "tok", Path: "/"},
	}
	if err := SaveCookies("test", in); err != nil {
		t.Fatalf("SaveCookies() error = %v", err)
	}

	out, err := LoadCookies("test")
	if err != nil {
		t.Fatalf("LoadCookies() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d cookies, want 2", len(out))
	}
	if out[0].Name != "session" || out[0].Value != "abc123" {
		t.Errorf("cookie[0] = %s=%s", out[0].Name, out[0].Value)
	}
}

func TestLoadCookiesMissing(t *testing.T) {
	withTempHome(t)

	out, err := LoadCookies("never-logged-in")
	if err != nil {
		t.Fatalf("LoadCookies() error = %v", err)
	}
	if out != nil {
		t.Errorf("got %v, want nil for missing cookie file", out)
	}
}

func TestClearCookies(t *testing.T) {
	withTempHome(t)

	if err := SaveCookies("test", []*http.Cookie{{Name: "session", Value: "x"}}); err != nil {
		t.Fatal(err)
	}
	if err := ClearCookies("test"); err != nil {
		t.Fatalf("ClearCookies() error = %v", err)
	}
	if _, err := os.Stat(CookiePath("test")); !os.IsNotExist(err) {
		t.Error("cookie file still exists after ClearCookies")
	}
	// Clearing again is a no-op.
	if err := ClearCookies("test"); err != nil {
		t.Errorf("second ClearCookies() error = %v", err)
	}
}

func TestCookieFilePermissions(t *testing.T) {
	withTempHome(t)

	if err := SaveCookies("test", []*http.Cookie{{Name: "session", Value: "x"}}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(CookiePath("test"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("cookie file permission = %o, want 0600", perm)
	}
}

func TestDirLayout(t *testing.T) {
	home := withTempHome(t)

	want := filepath.Join(home, ".sdesk", "profiles", "main")
	if got := Dir("main"); got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}
