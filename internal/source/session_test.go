package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSessionGet(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	sess, err := NewSession(0)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	body, err := sess.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if !strings.Contains(gotUA, "Mozilla") {
		t.Errorf("user agent = %q, want a browser string", gotUA)
	}
}

func TestSessionGetNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	sess, err := NewSession(0)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	if _, err := sess.Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected an error for a 403 response")
	}
}

func TestEnsureOwnsSessionWhenNil(t *testing.T) {
	sess, owned, err := ensure(nil)
	if err != nil {
		t.Fatalf("ensure(nil): %v", err)
	}
	if !owned {
		t.Error("ensure(nil) should report ownership")
	}
	sess.Close()

	shared, err := NewSession(1)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer shared.Close()

	got, owned, err := ensure(shared)
	if err != nil {
		t.Fatalf("ensure(shared): %v", err)
	}
	if owned {
		t.Error("ensure(shared) must not report ownership")
	}
	if got != shared {
		t.Error("ensure(shared) must return the same session")
	}
}
