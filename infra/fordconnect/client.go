package fordconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kilianp07/lowbac/core/command"
	"github.com/kilianp07/lowbac/core/model"
	"github.com/kilianp07/lowbac/core/session"
	"github.com/kilianp07/lowbac/infra/logger"
)

// Authorizer sets the Authorization header of outgoing requests.
type Authorizer interface {
	SetAuthHeader(r *http.Request) error
}

type endpoint struct {
	submit string
	poll   string
	// confirmed is the status a successful poll answers with.
	confirmed int
}

// endpoints maps every intent to its submission and confirmation paths. The
// placeholders are the vehicle id and, for poll, the command id.
var endpoints = map[command.Intent]endpoint{
	command.Unlock:        {submit: "/vehicles/%s/unlock", poll: "/vehicles/%s/unlock/%s", confirmed: http.StatusOK},
	command.StartEngine:   {submit: "/vehicles/%s/startEngine", poll: "/vehicles/%s/startEngine/%s", confirmed: http.StatusOK},
	command.RefreshStatus: {submit: "/vehicles/%s/status", poll: "/vehicles/%s/statusrefresh/%s", confirmed: http.StatusAccepted},
}

// Client talks to the vehicle-command API. Non-2xx answers are returned for
// classification; only transport failures are errors.
type Client struct {
	cfg  Config
	auth Authorizer
	http *http.Client
	log  logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout is the only deadline
// applied to vehicle API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New returns a Client for cfg, authorizing requests with auth.
func New(cfg Config, auth Authorizer, opts ...Option) *Client {
	cfg.SetDefaults()
	c := &Client{
		cfg:  cfg,
		auth: auth,
		http: &http.Client{Timeout: cfg.Timeout()},
		log:  logger.New("fordconnect"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit issues the command for intent to the vehicle.
func (c *Client) Submit(ctx context.Context, intent command.Intent, vehicleID string) (command.Response, error) {
	ep, ok := endpoints[intent]
	if !ok {
		return command.Response{}, fmt.Errorf("no endpoint for intent %s", intent)
	}
	return c.call(ctx, http.MethodPost, fmt.Sprintf(ep.submit, url.PathEscape(vehicleID)))
}

// Poll fetches the confirmation of a previously accepted command. The status
// refresh endpoint confirms with 202; that answer is reported as 200 so every
// intent is classified alike.
func (c *Client) Poll(ctx context.Context, intent command.Intent, vehicleID, commandID string) (command.Response, error) {
	ep, ok := endpoints[intent]
	if !ok {
		return command.Response{}, fmt.Errorf("no endpoint for intent %s", intent)
	}
	resp, err := c.call(ctx, http.MethodGet, fmt.Sprintf(ep.poll, url.PathEscape(vehicleID), url.PathEscape(commandID)))
	if err != nil {
		return resp, err
	}
	if resp.StatusCode == ep.confirmed {
		resp.StatusCode = http.StatusOK
	}
	return resp, nil
}

type listingBody struct {
	Status   string `json:"status"`
	Vehicles []struct {
		VehicleID     string `json:"vehicleId"`
		Make          string `json:"make"`
		ModelName     string `json:"modelName"`
		NickName      string `json:"nickName"`
		Authorization int    `json:"vehicleAuthorizationIndicator"`
	} `json:"vehicles"`
}

// ListVehicles lists the vehicles visible to the current token.
func (c *Client) ListVehicles(ctx context.Context) (session.VehicleListing, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/")
	if err != nil {
		return session.VehicleListing{}, err
	}
	out := session.VehicleListing{StatusCode: status, Raw: raw}
	if status != http.StatusOK {
		return out, nil
	}
	var body listingBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return out, fmt.Errorf("decode vehicle listing: %w", err)
	}
	for _, v := range body.Vehicles {
		out.Vehicles = append(out.Vehicles, model.Vehicle{
			ID:         v.VehicleID,
			Make:       v.Make,
			ModelName:  v.ModelName,
			NickName:   v.NickName,
			Authorized: v.Authorization == 1,
		})
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, method, path string) (command.Response, error) {
	status, raw, err := c.do(ctx, method, path)
	if err != nil {
		return command.Response{}, err
	}
	return command.Response{StatusCode: status, Body: decodeBody(raw), Raw: raw}, nil
}

func (c *Client) do(ctx context.Context, method, path string) (int, []byte, error) {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.auth != nil {
		if err := c.auth.SetAuthHeader(req); err != nil {
			return 0, nil, fmt.Errorf("failed to set auth header: %w", err)
		}
	}
	req.Header.Set("Application-Id", c.cfg.ApplicationID)
	req.Header.Set("api-version", c.cfg.APIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.log.Debugf("%s %s -> %d", method, path, resp.StatusCode)
	return resp.StatusCode, raw, nil
}

// decodeBody returns nil when raw is not a JSON object.
func decodeBody(raw []byte) *command.Body {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var b command.Body
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil
	}
	return &b
}
