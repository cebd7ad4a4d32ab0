package sessioncookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadMissingCookie(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := Read(r); ok {
		t.Fatal("expected no value without cookie")
	}
}

func TestWriteThenRead(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	Write(w, httptest.NewRequest(http.MethodGet, "/", nil), "  session-token  ")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range w.Result().Cookies() {
		r.AddCookie(cookie)
	}
	value, ok := Read(r)
	if !ok {
		t.Fatal("expected cookie value")
	}
	if value != "session-token" {
		t.Fatalf("value = %q, want trimmed token", value)
	}
}

func TestClearExpiresCookie(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	Clear(w, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	if cookies[0].MaxAge >= 0 {
		t.Fatalf("max age = %d, want negative", cookies[0].MaxAge)
	}
}

func TestSecureOnForwardedHTTPS(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	Write(w, r, "token")

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].Secure {
		t.Fatal("expected secure cookie behind https proxy")
	}
}
