package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenServer struct {
	*httptest.Server
	calls  atomic.Int32
	grants []string
	mu     sync.Mutex
}

func newTokenServer(t *testing.T, status int) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		_ = r.ParseForm()
		ts.mu.Lock()
		ts.grants = append(ts.grants, r.PostForm.Get("grant_type"))
		ts.mu.Unlock()
		if status != http.StatusOK {
			http.Error(w, `{"error":"invalid_grant"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token123","token_type":"bearer","expires_in":1200,"refresh_token":"refresh-2"}`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRefreshIfExpiring(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK)
	s := NewSession(Conf{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL, RefreshToken: "refresh-1"})

	assert.True(t, s.ExpiresWithin(time.Minute))
	require.NoError(t, s.RefreshIfExpiring(context.Background(), time.Minute))
	assert.Equal(t, int32(1), srv.calls.Load())
	assert.Equal(t, "token123", s.Token().AccessToken)
	assert.Equal(t, "refresh-2", s.Token().RefreshToken)
	assert.Equal(t, []string{"refresh_token"}, srv.grants)

	// valid for 20 minutes: a one minute lead skips the call
	require.NoError(t, s.RefreshIfExpiring(context.Background(), time.Minute))
	assert.Equal(t, int32(1), srv.calls.Load())

	// a lead beyond the expiry forces a refresh
	require.NoError(t, s.RefreshIfExpiring(context.Background(), time.Hour))
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestRefreshWithClock(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK)
	now := time.Now()
	s := NewSession(Conf{TokenURL: srv.URL, RefreshToken: "r"}, WithClock(func() time.Time { return now }))
	require.NoError(t, s.RefreshIfExpiring(context.Background(), time.Minute))

	now = now.Add(19*time.Minute + 30*time.Second)
	assert.True(t, s.ExpiresWithin(time.Minute))
	require.NoError(t, s.RefreshIfExpiring(context.Background(), time.Minute))
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	s := NewSession(Conf{TokenURL: "http://127.0.0.1:1"})
	assert.ErrorIs(t, s.RefreshIfExpiring(context.Background(), time.Minute), ErrNoRefreshToken)
}

func TestRefreshFailure(t *testing.T) {
	srv := newTokenServer(t, http.StatusBadRequest)
	s := NewSession(Conf{TokenURL: srv.URL, RefreshToken: "r"}, WithHTTPClient(srv.Client()))
	err := s.RefreshIfExpiring(context.Background(), time.Minute)
	require.Error(t, err)
	assert.True(t, s.ExpiresWithin(time.Minute))
	assert.Equal(t, "r", s.Token().RefreshToken)
}

func TestExchangeAndSetAuthHeader(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK)
	s := NewSession(Conf{ClientID: "id", TokenURL: srv.URL, RedirectURL: "https://localhost/cb"})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	assert.ErrorIs(t, s.SetAuthHeader(req), ErrNoAccessToken)

	require.NoError(t, s.Exchange(context.Background(), "code-1"))
	assert.Equal(t, []string{"authorization_code"}, srv.grants)

	require.NoError(t, s.SetAuthHeader(req))
	assert.Equal(t, "Bearer token123", req.Header.Get("Authorization"))
}

func TestConcurrentReadsDuringRefresh(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK)
	s := NewSession(Conf{TokenURL: srv.URL, RefreshToken: "r"})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.RefreshIfExpiring(context.Background(), time.Minute)
		}()
		go func() {
			defer wg.Done()
			if tok := s.Token(); tok != nil && tok.AccessToken != "" {
				assert.Equal(t, "token123", tok.AccessToken)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), srv.calls.Load())
}
