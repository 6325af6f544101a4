package fordconnect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/lowbac/core/command"
	"github.com/kilianp07/lowbac/infra/logger"
)

type staticAuth struct{ err error }

func (s staticAuth) SetAuthHeader(r *http.Request) error {
	if s.err != nil {
		return s.err
	}
	r.Header.Set("Authorization", "Bearer tok")
	return nil
}

type seen struct {
	method string
	path   string
	header http.Header
}

func newServer(t *testing.T, status int, body string, got *seen) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			*got = seen{method: r.Method, path: r.URL.Path, header: r.Header.Clone()}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", ApplicationID: "app-1"}, staticAuth{})
}

func TestEndpointTable(t *testing.T) {
	cases := []struct {
		intent     command.Intent
		submitPath string
		pollPath   string
	}{
		{command.Unlock, "/vehicles/v1/unlock", "/vehicles/v1/unlock/c1"},
		{command.StartEngine, "/vehicles/v1/startEngine", "/vehicles/v1/startEngine/c1"},
		{command.RefreshStatus, "/vehicles/v1/status", "/vehicles/v1/statusrefresh/c1"},
	}
	for _, tc := range cases {
		t.Run(tc.intent.String(), func(t *testing.T) {
			var got seen
			c := newServer(t, http.StatusAccepted, `{"status":"SUCCESS","commandStatus":"COMPLETED","commandId":"c1"}`, &got)

			resp, err := c.Submit(context.Background(), tc.intent, "v1")
			require.NoError(t, err)
			assert.Equal(t, http.MethodPost, got.method)
			assert.Equal(t, tc.submitPath, got.path)
			assert.Equal(t, http.StatusAccepted, resp.StatusCode)
			require.NotNil(t, resp.Body)
			assert.Equal(t, "c1", resp.Body.CommandID)
			assert.Equal(t, "Bearer tok", got.header.Get("Authorization"))
			assert.Equal(t, "app-1", got.header.Get("Application-Id"))
			assert.Equal(t, DefaultAPIVersion, got.header.Get("api-version"))

			_, err = c.Poll(context.Background(), tc.intent, "v1", "c1")
			require.NoError(t, err)
			assert.Equal(t, http.MethodGet, got.method)
			assert.Equal(t, tc.pollPath, got.path)
		})
	}
	assert.Len(t, endpoints, len(command.Intents))
}

func TestNon2xxIsNotAnError(t *testing.T) {
	c := newServer(t, http.StatusUnauthorized, `{"error":"unauthorized"}`, nil)
	resp, err := c.Submit(context.Background(), command.Unlock, "v1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"unauthorized"}`, string(resp.Raw))
}

func TestUndecodableBodyIsNil(t *testing.T) {
	for _, body := range []string{"", "null", "not json", "[1,2]"} {
		c := newServer(t, http.StatusOK, body, nil)
		resp, err := c.Poll(context.Background(), command.Unlock, "v1", "c1")
		require.NoError(t, err)
		assert.Nil(t, resp.Body, "body %q", body)
	}
}

func TestTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, ApplicationID: "a"}, staticAuth{},
		WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	_, err := c.Submit(context.Background(), command.Unlock, "v1")
	assert.Error(t, err)

	denied := errors.New("no token")
	c = New(Config{BaseURL: srv.URL, ApplicationID: "a"}, staticAuth{err: denied})
	_, err = c.Submit(context.Background(), command.Unlock, "v1")
	assert.ErrorIs(t, err, denied)

	_, err = c.Submit(context.Background(), command.Intent(99), "v1")
	assert.Error(t, err)
}

func TestStatusRefreshConfirmsWith202(t *testing.T) {
	cases := []struct {
		name   string
		intent command.Intent
		poll   int
		want   command.OutcomeKind
	}{
		{"status refresh 202 is success", command.RefreshStatus, http.StatusAccepted, command.Completed},
		{"unlock 202 is an http error", command.Unlock, http.StatusAccepted, command.ConfirmationHTTPError},
		{"unlock 200 is success", command.Unlock, http.StatusOK, command.Completed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if r.Method == http.MethodPost {
					w.WriteHeader(http.StatusAccepted)
					_, _ = w.Write([]byte(`{"status":"SUCCESS","commandStatus":"COMPLETED","commandId":"c1"}`))
					return
				}
				w.WriteHeader(tc.poll)
				_, _ = w.Write([]byte(`{"status":"SUCCESS","commandStatus":"COMPLETED","commandId":"c1"}`))
			}))
			defer srv.Close()

			engine, err := command.NewEngine(New(Config{BaseURL: srv.URL, ApplicationID: "a"}, staticAuth{}), logger.NopLogger{})
			require.NoError(t, err)
			out, err := engine.Run(context.Background(), tc.intent, "v1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Kind)
		})
	}
}

func TestListVehicles(t *testing.T) {
	var got seen
	c := newServer(t, http.StatusOK, `{"status":"SUCCESS","vehicles":[
		{"vehicleId":"a","make":"Ford","modelName":"Escape","vehicleAuthorizationIndicator":0},
		{"vehicleId":"b","make":"Ford","modelName":"Mustang Mach-E","nickName":"mach","vehicleAuthorizationIndicator":1}
	]}`, &got)

	l, err := c.ListVehicles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/", got.path)
	assert.Equal(t, http.StatusOK, l.StatusCode)
	require.Len(t, l.Vehicles, 2)
	assert.False(t, l.Vehicles[0].Authorized)
	assert.True(t, l.Vehicles[1].Authorized)
	assert.Equal(t, "mach", l.Vehicles[1].NickName)
}

func TestListVehiclesNon200(t *testing.T) {
	c := newServer(t, http.StatusInternalServerError, `oops`, nil)
	l, err := c.ListVehicles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, l.StatusCode)
	assert.Empty(t, l.Vehicles)
	assert.Equal(t, "oops", string(l.Raw))
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout())
	assert.Error(t, cfg.Validate(), "application id required")
	cfg.ApplicationID = "x"
	assert.NoError(t, cfg.Validate())
	cfg.BaseURL = "not a url"
	assert.Error(t, cfg.Validate())
}
