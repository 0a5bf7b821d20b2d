package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/portal-session/session"
)

const (
	oldAccess  = "access-token-1"
	newAccess  = "access-token-2"
	oldRefresh = "refresh-token-1"
	newRefresh = "refresh-token-2"
)

// backend is a fake portal API. Tests register routes on mux.
type backend struct {
	*httptest.Server
	mux          *http.ServeMux
	refreshCalls atomic.Int32

	mu          sync.Mutex
	refreshAuth string
	refreshBody map[string]string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{mux: http.NewServeMux()}
	b.Server = httptest.NewServer(b.mux)
	t.Cleanup(b.Close)
	return b
}

// rotatingRefresh answers /auth/refresh with a new token pair after delay.
func (b *backend) rotatingRefresh(delay time.Duration) {
	b.mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)

		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.refreshAuth = r.Header.Get("Authorization")
		b.refreshBody = body
		b.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"accessToken":  newAccess,
				"refreshToken": newRefresh,
				"expiresIn":    3600,
			},
		})
	})
}

// guarded serves ok only to requests bearing token, 401 otherwise.
func guarded(token string, hits *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"jwt expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"orders":[1,2,3]},"responseCode":"00"}`))
	}
}

func signedIn(t *testing.T, refresh string) (*session.Manager, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	sess := session.NewManager(store)
	sess.Init()
	sess.SetSession(session.Principal{ID: "u1", Name: "Ada", Trust: session.Provisional},
		oldAccess, refresh, time.Now().Add(time.Hour))
	return sess, store
}

func newTestClient(t *testing.T, b *backend, sess *session.Manager, cfg ...Config) *Client {
	t.Helper()
	c := Config{BaseURL: b.URL, UserAgent: "portal-test"}
	if len(cfg) > 0 {
		c = cfg[0]
		c.BaseURL = b.URL
	}
	client, err := New(c, sess, WithDoer(b.Client()))
	require.NoError(t, err)
	return client
}

type orders struct {
	Orders []int `json:"orders"`
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"}, session.NewManager(nil))
	require.Error(t, err)

	_, err = New(Config{BaseURL: "https://example.com"}, nil)
	require.Error(t, err)
}

func TestClient_AttachesHeaders(t *testing.T) {
	b := newBackend(t)
	var got http.Header
	b.mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	})

	sess, _ := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	_, err := c.Do(context.Background(), &Request{Path: "/orders"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer "+oldAccess, got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "portal-test", got.Get("User-Agent"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
	assert.Empty(t, got.Get("Content-Type"), "no body, no content type")
}

func TestClient_SkipAuth(t *testing.T) {
	b := newBackend(t)
	var auth string
	b.mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	})

	sess, _ := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	_, err := c.Do(context.Background(), &Request{Path: "/status", SkipAuth: true})
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestClient_SkipAuth401KeepsSession(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(0)
	b.mux.Handle("/orders", guarded(oldAccess, nil))

	sess, store := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	_, err := c.Do(context.Background(), &Request{Path: "/orders", SkipAuth: true})
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))

	assert.Zero(t, b.refreshCalls.Load())
	assert.True(t, sess.Snapshot().IsAuthenticated)
	assert.Equal(t, oldAccess, sess.AccessToken())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, oldAccess, saved.AccessToken)

	// the same path with the bearer attached still works
	var out orders
	require.NoError(t, c.Get(context.Background(), "/orders", &out))
}

func TestClient_NoSessionSendsUnauthenticated(t *testing.T) {
	b := newBackend(t)
	var auth string
	b.mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":{"orders":[]}}`))
	})

	c := newTestClient(t, b, session.NewManager(nil))

	var out orders
	require.NoError(t, c.Get(context.Background(), "/catalog", &out))
	assert.Empty(t, auth)
}

func TestClient_DecodesEnvelopeAndBareBodies(t *testing.T) {
	b := newBackend(t)
	b.mux.HandleFunc("/wrapped", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"orders":[1]},"responseCode":0,"responseDesc":"ok"}`))
	})
	b.mux.HandleFunc("/bare", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders":[2]}`))
	})

	c := newTestClient(t, b, session.NewManager(nil))

	var wrapped, bare orders
	require.NoError(t, c.Get(context.Background(), "/wrapped", &wrapped))
	require.NoError(t, c.Get(context.Background(), "/bare", &bare))
	assert.Equal(t, []int{1}, wrapped.Orders)
	assert.Equal(t, []int{2}, bare.Orders)
}

func TestClient_CustomInterceptors(t *testing.T) {
	b := newBackend(t)
	var tenant string
	b.mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		tenant = r.Header.Get("X-Tenant")
		w.WriteHeader(http.StatusNotFound)
	})

	c := newTestClient(t, b, session.NewManager(nil))
	c.UseRequest(func(_ *Call, req *http.Request) error {
		req.Header.Set("X-Tenant", "acme")
		return nil
	})
	var seen Kind
	c.UseResponse(func(_ context.Context, _ *Call, resp *Response, err error) (*Response, error) {
		seen = KindOf(err)
		return resp, err
	})

	_, err := c.Do(context.Background(), &Request{Path: "/orders"})
	require.Error(t, err)
	assert.Equal(t, "acme", tenant)
	assert.Equal(t, KindNotFound, seen)
}

func TestClient_RequestInterceptorError(t *testing.T) {
	b := newBackend(t)
	var hits atomic.Int32
	b.mux.HandleFunc("/orders", guarded(oldAccess, &hits))

	c := newTestClient(t, b, session.NewManager(nil))
	c.UseRequest(func(*Call, *http.Request) error { return errors.New("blocked") })

	_, err := c.Do(context.Background(), &Request{Path: "/orders"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
	assert.Zero(t, hits.Load())
}

func TestClient_PublicRoute401IsNotRefreshed(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(0)
	b.mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"status code 401"}`))
	})

	sess, _ := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	_, err := c.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/auth/login"})
	require.Error(t, err)

	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, MsgInvalidCredentials, err.Error())
	assert.Zero(t, b.refreshCalls.Load())
	assert.Equal(t, oldAccess, sess.AccessToken(), "session untouched")
}

func TestClient_PublicRouteFriendlyMessage(t *testing.T) {
	b := newBackend(t)
	b.mux.HandleFunc("/auth/verify-otp/confirm", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"customerMessage":"The code you entered is incorrect."}`))
	})

	c := newTestClient(t, b, session.NewManager(nil))

	_, err := c.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/auth/verify-otp/confirm"})
	require.Error(t, err)
	assert.Equal(t, "The code you entered is incorrect.", err.Error())
}

func TestClient_LogoutFailurePropagatesUntouched(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(0)
	b.mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	sess, _ := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	_, err := c.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/auth/logout"})
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Zero(t, b.refreshCalls.Load())
}

func TestClient_RefreshRouteFailureClearsSession(t *testing.T) {
	b := newBackend(t)
	b.mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	sess, store := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	_, err := c.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/auth/refresh"})
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.False(t, sess.Snapshot().IsAuthenticated)
	assert.Zero(t, c.RefreshCount())

	_, loadErr := store.Load()
	assert.ErrorIs(t, loadErr, session.ErrNoSnapshot)
}

func TestClient_RefreshesAndReplays(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(0)
	var hits atomic.Int32
	b.mux.HandleFunc("/orders", guarded(newAccess, &hits))

	sess, store := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	var out orders
	require.NoError(t, c.Get(context.Background(), "/orders", &out))
	assert.Equal(t, []int{1, 2, 3}, out.Orders)

	assert.EqualValues(t, 2, hits.Load())
	assert.EqualValues(t, 1, b.refreshCalls.Load())
	assert.EqualValues(t, 1, c.RefreshCount())

	b.mu.Lock()
	assert.Equal(t, "Bearer "+oldRefresh, b.refreshAuth)
	assert.Equal(t, oldRefresh, b.refreshBody["refreshToken"])
	b.mu.Unlock()

	s := sess.Snapshot()
	assert.Equal(t, newAccess, s.AccessToken)
	assert.Equal(t, newRefresh, s.RefreshToken)
	require.NotNil(t, s.Principal)
	assert.Equal(t, "u1", s.Principal.ID, "principal kept across refresh")

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, newAccess, persisted.AccessToken)
}

func TestClient_ReplayResendsBody(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(0)
	var bodies []string
	var mu sync.Mutex
	b.mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		guarded(newAccess, nil)(w, r)
	})

	sess, _ := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	err := c.Post(context.Background(), "/orders", map[string]int{"qty": 2}, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"qty":2}`, bodies[0])
	assert.Equal(t, bodies[0], bodies[1])
}

func TestClient_ConcurrentExpiryRefreshesOnce(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(100 * time.Millisecond)
	b.mux.HandleFunc("/orders", guarded(newAccess, nil))

	sess, _ := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out orders
			errs[i] = c.Get(context.Background(), "/orders", &out)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "call %d", i)
	}
	assert.EqualValues(t, 1, b.refreshCalls.Load())
	assert.EqualValues(t, 1, c.RefreshCount())
	assert.Equal(t, newAccess, sess.AccessToken())
}

func TestClient_RefreshRejectedExpiresSession(t *testing.T) {
	b := newBackend(t)
	b.mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
	})
	var hits atomic.Int32
	b.mux.HandleFunc("/orders", guarded(newAccess, &hits))

	sess, store := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	_, err := c.Do(context.Background(), &Request{Path: "/orders"})
	require.Error(t, err)

	assert.True(t, IsKind(err, KindSessionExpired))
	assert.Equal(t, MsgSessionExpired, err.Error())
	assert.EqualValues(t, 1, hits.Load(), "original request not replayed")
	assert.EqualValues(t, 1, b.refreshCalls.Load())

	s := sess.Snapshot()
	assert.False(t, s.IsAuthenticated)
	assert.Empty(t, s.AccessToken)
	assert.Empty(t, s.RefreshToken)
	assert.Nil(t, s.Principal)

	_, loadErr := store.Load()
	assert.ErrorIs(t, loadErr, session.ErrNoSnapshot)
}

func TestClient_401AfterReplayIsTerminal(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(0)
	var hits atomic.Int32
	b.mux.HandleFunc("/orders", guarded("never-valid-token", &hits))

	sess, _ := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	_, err := c.Do(context.Background(), &Request{Path: "/orders"})
	require.Error(t, err)

	assert.True(t, IsKind(err, KindSessionExpired))
	assert.EqualValues(t, 2, hits.Load(), "replayed exactly once")
	assert.EqualValues(t, 1, b.refreshCalls.Load())
	assert.False(t, sess.Snapshot().IsAuthenticated)
}

func TestClient_401WithoutRefreshToken(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(0)
	b.mux.HandleFunc("/orders", guarded(newAccess, nil))

	sess, _ := signedIn(t, "")
	c := newTestClient(t, b, sess)

	_, err := c.Do(context.Background(), &Request{Path: "/orders"})
	require.Error(t, err)

	assert.True(t, IsKind(err, KindSessionExpired))
	assert.Zero(t, b.refreshCalls.Load())
	assert.False(t, sess.Snapshot().IsAuthenticated)
}

func TestClient_401WithoutSession(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(0)
	b.mux.HandleFunc("/orders", guarded(newAccess, nil))

	c := newTestClient(t, b, session.NewManager(nil))

	_, err := c.Do(context.Background(), &Request{Path: "/orders"})
	require.Error(t, err)

	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, MsgUnauthenticated, err.Error(), "transport phrase is not shown")
	assert.Zero(t, b.refreshCalls.Load())
}

func TestClient_StaleTokenReplaysWithoutExchange(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(0)

	sess, _ := signedIn(t, oldRefresh)
	var hits atomic.Int32
	b.mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		if hits.Load() == 0 {
			// another caller finished a refresh while this one was in flight
			sess.UpdateTokens(newAccess, newRefresh, time.Now().Add(time.Hour))
		}
		guarded(newAccess, &hits)(w, r)
	})

	c := newTestClient(t, b, sess)

	_, err := c.Do(context.Background(), &Request{Path: "/orders"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
	assert.Zero(t, b.refreshCalls.Load())
}

func TestClient_ProactiveRefresh(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(0)

	sess, _ := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, newAccess, sess.AccessToken())
	assert.EqualValues(t, 1, c.RefreshCount())

	empty := newTestClient(t, b, session.NewManager(nil))
	assert.ErrorIs(t, empty.Refresh(context.Background()), ErrRefreshUnavailable)
}

func TestClient_RefreshKeepsFixedRefreshToken(t *testing.T) {
	b := newBackend(t)
	b.mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"` + newAccess + `","token_type":"Bearer","expires_in":60}`))
	})

	sess, _ := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	before := time.Now()
	require.NoError(t, c.Refresh(context.Background()))

	s := sess.Snapshot()
	assert.Equal(t, newAccess, s.AccessToken)
	assert.Equal(t, oldRefresh, s.RefreshToken)
	assert.WithinDuration(t, before.Add(time.Minute), s.Expiry, 5*time.Second)
}

func TestClient_RefreshInvalidPayloadClears(t *testing.T) {
	b := newBackend(t)
	b.mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"accessToken":"short"}}`))
	})

	sess, _ := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	require.Error(t, c.Refresh(context.Background()))
	assert.False(t, sess.Snapshot().IsAuthenticated)
}

func TestClient_NetworkErrors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		b := newBackend(t)
		c := newTestClient(t, b, session.NewManager(nil))
		b.Close()

		_, err := c.Do(context.Background(), &Request{Path: "/orders"})
		require.Error(t, err)
		assert.Equal(t, KindNetwork, KindOf(err))
		assert.Equal(t, MsgNetwork, err.Error())
	})

	t.Run("timeout", func(t *testing.T) {
		b := newBackend(t)
		b.mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		c := newTestClient(t, b, session.NewManager(nil), Config{Timeout: 50 * time.Millisecond})

		_, err := c.Do(context.Background(), &Request{Path: "/slow"})
		require.Error(t, err)
		assert.Equal(t, KindNetwork, KindOf(err))
		assert.Equal(t, MsgTimeout, err.Error())
	})

	t.Run("canceled", func(t *testing.T) {
		b := newBackend(t)
		b.mux.HandleFunc("/orders", guarded(oldAccess, nil))
		c := newTestClient(t, b, session.NewManager(nil))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Do(ctx, &Request{Path: "/orders"})
		require.Error(t, err)
		assert.Equal(t, MsgCanceled, err.Error())
	})
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{"forbidden default", http.StatusForbidden, ``, KindForbidden, MsgForbidden},
		{"forbidden friendly", http.StatusForbidden, `{"message":"Your plan does not include reports."}`, KindForbidden, "Your plan does not include reports."},
		{"bad request", http.StatusBadRequest, `{"errors":[{"message":"Email is already verified."}]}`, KindValidation, "Email is already verified."},
		{"unprocessable", http.StatusUnprocessableEntity, `{"detail":"Internal Server Error"}`, KindValidation, MsgUnprocessable},
		{"not found", http.StatusNotFound, `<!DOCTYPE html><html></html>`, KindNotFound, MsgNotFound},
		{"conflict", http.StatusConflict, `{"message":"duplicate key"}`, KindConflict, MsgConflict},
		{"rate limited", http.StatusTooManyRequests, ``, KindRateLimited, MsgRateLimited},
		{"server", http.StatusBadGateway, `{"message":"Sorry!"}`, KindServer, MsgServer},
		{"teapot", http.StatusTeapot, ``, KindUnknown, MsgUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			b.mux.HandleFunc("/thing", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			c := newTestClient(t, b, session.NewManager(nil))

			_, err := c.Do(context.Background(), &Request{Path: "/thing"})
			require.Error(t, err)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "/thing", apiErr.Path)
			require.NotNil(t, apiErr.Response)
			assert.Contains(t, apiErr.Detail(), "GET /thing")
		})
	}
}

func TestClient_RefreshDroppedAfterNewLogin(t *testing.T) {
	b := newBackend(t)
	b.rotatingRefresh(150 * time.Millisecond)

	sess, store := signedIn(t, oldRefresh)
	c := newTestClient(t, b, sess)

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()

	require.Eventually(t, func() bool { return b.refreshCalls.Load() == 1 },
		time.Second, 5*time.Millisecond)
	sess.SetSession(session.Principal{ID: "u2", Name: "Grace"},
		"access-token-9", "refresh-token-9", time.Now().Add(time.Hour))

	err := <-done
	require.ErrorIs(t, err, ErrSessionChanged)

	s := sess.Snapshot()
	assert.Equal(t, "access-token-9", s.AccessToken)
	assert.Equal(t, "refresh-token-9", s.RefreshToken)
	assert.Equal(t, "u2", s.Principal.ID)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-token-9", saved.AccessToken)
}
