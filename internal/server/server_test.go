package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/yms/internal/shared"
	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request: %v", err)
			return
		}
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "AQAAAA-token",
			"token_type":   "bearer",
			"expires_in":   31536000,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestHandler(t *testing.T) *OAuthHandler {
	t.Helper()
	tokenServer := newTokenServer(t)
	config := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3000/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: tokenServer.URL + "/authorize", TokenURL: tokenServer.URL + "/token"},
	}
	return NewOAuthHandler(config, "state-123", "")
}

func TestOAuthHandler(t *testing.T) {
	t.Run("exchanges code for token", func(t *testing.T) {
		h := newTestHandler(t)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-123&code=good-code", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := <-h.Result()
		if result.Error() != nil {
			t.Fatalf("expected no error, got %v", result.Error())
		}
		if result.Token.AccessToken != "AQAAAA-token" {
			t.Errorf("unexpected token %q", result.Token.AccessToken)
		}
	})

	t.Run("rejects invalid state", func(t *testing.T) {
		h := newTestHandler(t)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=good-code", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); !errors.Is(result.Error(), shared.ErrAuthorization) {
			t.Errorf("expected ErrAuthorization, got %v", result.Error())
		}
	})

	t.Run("reports denied access", func(t *testing.T) {
		h := newTestHandler(t)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-123&error=access_denied", nil))

		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrAuthorization) || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected access_denied authorization error, got %v", result.Error())
		}
	})

	t.Run("reports failed exchange", func(t *testing.T) {
		h := newTestHandler(t)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-123&code=bad-code", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected exchange error")
		}
	})

	t.Run("processes a single callback", func(t *testing.T) {
		h := newTestHandler(t)
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=state-123&code=good-code", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-123&code=good-code", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected second callback to be rejected, got %d", rec.Code)
		}

		<-h.Result()
		if _, ok := <-h.Result(); ok {
			t.Error("expected result channel to be closed")
		}
	})

	t.Run("AuthURL carries state", func(t *testing.T) {
		h := newTestHandler(t)
		if u := h.AuthURL(); !strings.Contains(u, "state=state-123") || !strings.Contains(u, "client_id=id") {
			t.Errorf("unexpected auth url %s", u)
		}
		if routes := h.Routes(); len(routes) != 1 || routes[0] != "/callback" {
			t.Errorf("unexpected routes %v", routes)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "pong")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		if rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %q", rec.Body.String())
		}
		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("expected first then second, got %v", order)
		}
	})

	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("registers handler routes with logging", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(RequestLogger(shared.NewLogger(io.Discard)))
		h := newTestHandler(t)
		router.Handler(h)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-123&code=good-code", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("Listen serves until shutdown", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "pong")
		}))

		l, err := Listen("127.0.0.1:0", router)
		if err != nil {
			t.Fatalf("Listen failed: %v", err)
		}

		resp, err := http.Get("http://" + l.Addr() + "/ping")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != "pong" {
			t.Errorf("expected pong, got %q", body)
		}

		if err := l.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown failed: %v", err)
		}
		select {
		case err := <-l.Errors():
			t.Errorf("unexpected serve error: %v", err)
		default:
		}
	})
}
