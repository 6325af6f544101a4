// Package webhook exposes the HTTP endpoint the IoT cloud posts signal
// changes to.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/lowbac/core/decoder"
	"github.com/kilianp07/lowbac/core/logger"
	"github.com/kilianp07/lowbac/core/model"
	coremon "github.com/kilianp07/lowbac/core/monitoring"
	"github.com/kilianp07/lowbac/core/relay"
	"github.com/kilianp07/lowbac/core/session"
)

// Response bodies.
const (
	MsgProcessed    = "Message processed."
	MsgShuttingDown = "Shutting down."
	MsgInternal     = "Unhandled error."
)

const (
	// DefaultUser is the user key of requests without a user query parameter.
	DefaultUser = "arduino-iot"
	// DefaultMaxBodyBytes bounds the request body.
	DefaultMaxBodyBytes = 1 << 20
)

// Processor handles decoded events.
type Processor interface {
	HandleEvent(ctx context.Context, ev model.Event, userKey string) (relay.Result, error)
	Dispatch(ctx context.Context, ev model.Event, userKey string) (string, error)
}

// Options configures the handler.
type Options struct {
	// AwaitDispatch answers only after every command was classified.
	AwaitDispatch bool
	DefaultUser   string
	// Production hides diagnostic detail from 500 responses.
	Production   bool
	MaxBodyBytes int64
}

// Handler serves POST requests carrying a hex encoded event in the data form
// field.
type Handler struct {
	proc     Processor
	opts     Options
	log      logger.Logger
	requests *prometheus.CounterVec
}

// NewHandler creates a Handler counting requests on reg. A nil registerer
// defaults to the global Prometheus registerer.
func NewHandler(proc Processor, opts Options, log logger.Logger, reg prometheus.Registerer) (*Handler, error) {
	if proc == nil || log == nil {
		return nil, fmt.Errorf("processor and logger are required")
	}
	if opts.DefaultUser == "" {
		opts.DefaultUser = DefaultUser
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lowbac_webhook_requests_total",
		Help: "Webhook requests by response code",
	}, []string{"code"})
	if err := reg.Register(requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		requests = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &Handler{proc: proc, opts: opts, log: log, requests: requests}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			err := coremon.CapturePanic(rec, stack, map[string]string{"module": "webhook"})
			h.fail(w, err, stack)
		}
	}()
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.write(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	if err := r.ParseMultipartForm(h.opts.MaxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.log.Warnf("unreadable webhook body: %v", err)
		h.write(w, http.StatusOK, MsgProcessed)
		return
	}
	data := r.FormValue("data")
	if data == "" {
		h.log.Warnf("webhook without data field")
		h.write(w, http.StatusOK, MsgProcessed)
		return
	}
	ev, err := decoder.Decode(data)
	if err != nil {
		if decoder.IsBadPayload(err) {
			// the request ends here; no command is issued
			h.log.Warnf("malformed event: %v", err)
			h.write(w, http.StatusOK, MsgProcessed)
			return
		}
		h.fail(w, err, nil)
		return
	}
	h.log.Infof("webhook invoked by %s", ev.Source())

	user := r.URL.Query().Get("user")
	if user == "" {
		user = h.opts.DefaultUser
	}

	if !h.opts.AwaitDispatch {
		id, err := h.proc.Dispatch(r.Context(), ev, user)
		if errors.Is(err, relay.ErrClosed) {
			h.write(w, http.StatusServiceUnavailable, MsgShuttingDown)
			return
		}
		if err != nil {
			h.fail(w, err, nil)
			return
		}
		h.log.Debugf("dispatch %s started", id)
		h.write(w, http.StatusOK, MsgProcessed)
		return
	}

	res, err := h.proc.HandleEvent(r.Context(), ev, user)
	var se *session.Error
	switch {
	case errors.As(err, &se):
		// aborted and already reported; the trigger source only needs the ack
		h.log.Warnf("dispatch %s aborted: %v", res.DispatchID, err)
	case err != nil:
		h.fail(w, err, nil)
		return
	}
	h.write(w, http.StatusOK, MsgProcessed)
}

func (h *Handler) fail(w http.ResponseWriter, err error, stack []byte) {
	h.log.Errorf("webhook failed: %v", err)
	if h.opts.Production {
		h.write(w, http.StatusInternalServerError, MsgInternal)
		return
	}
	if stack == nil {
		stack = debug.Stack()
	}
	h.write(w, http.StatusInternalServerError, fmt.Sprintf("%s\n\n%v\n\n%s", MsgInternal, err, stack))
}

func (h *Handler) write(w http.ResponseWriter, code int, body string) {
	h.requests.WithLabelValues(strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}
