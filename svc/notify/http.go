package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/harvestlane/notifykit/pkg/httpserver"
	"github.com/harvestlane/notifykit/pkg/logger"
	"github.com/harvestlane/notifykit/pkg/notifications"
	"github.com/harvestlane/notifykit/pkg/requestid"
)

const (
	maxBodyBytes     = 1 << 20
	defaultPageLimit = 50
	maxPageLimit     = 200
)

var (
	errUnauthenticated   = errors.New("notify: recipient identity required")
	errForbidden         = errors.New("notify: admin role required")
	errStreamUnavailable = errors.New("notify: live feed is not configured")
)

// Response is the JSON envelope of every API response.
type Response struct {
	Data  any          `json:"data,omitempty"`
	Meta  any          `json:"meta,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Router serves the notification API.
type Router struct {
	svc       *Service
	feed      *notifications.Feed
	readiness []func(context.Context) error
	logger    *slog.Logger
}

type RouterOption func(*Router)

// WithFeed enables the live stream endpoint.
func WithFeed(f *notifications.Feed) RouterOption {
	return func(rt *Router) { rt.feed = f }
}

// WithReadinessCheck adds a dependency probe to /readyz.
func WithReadinessCheck(check func(context.Context) error) RouterOption {
	return func(rt *Router) {
		if check != nil {
			rt.readiness = append(rt.readiness, check)
		}
	}
}

func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(rt *Router) {
		if l != nil {
			rt.logger = l
		}
	}
}

// NewRouter builds the HTTP handler.
func NewRouter(svc *Service, opts ...RouterOption) http.Handler {
	rt := &Router{svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(rt)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer, requestid.Middleware, IdentityMiddleware)

	r.Get("/healthz", httpserver.HealthCheckHandler(rt.logger))
	r.Get("/readyz", httpserver.HealthCheckHandler(rt.logger, rt.readiness...))

	r.Get("/public/notifications", wrap(rt, rt.listPublic))
	r.Get("/notifications/stream", rt.stream)

	r.Group(func(r chi.Router) {
		r.Use(rt.requireRecipient)
		r.Get("/notifications", wrap(rt, rt.list))
		r.Get("/notifications/unread-count", wrap(rt, rt.unreadCount))
		r.Post("/notifications/read", wrap(rt, rt.markRead))
		r.Post("/notifications/read-all", wrap(rt, rt.markAllRead))
		r.Get("/preferences", wrap(rt, rt.getPreferences))
		r.Patch("/preferences", wrap(rt, rt.updatePreferences))
	})

	r.Group(func(r chi.Router) {
		r.Use(rt.requireAdmin)
		r.Post("/announcements", wrap(rt, rt.announce))
		r.Post("/admin/alerts", wrap(rt, rt.alertAdmins))
		r.Post("/events/{event}", wrap(rt, rt.trigger))
	})
	return r
}

// handlerFunc is a typed handler: the request body is decoded into R and the
// returned value is wrapped in the JSON envelope.
type handlerFunc[R any] func(r *http.Request, req R) (any, error)

func wrap[R any](rt *Router, h handlerFunc[R]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req R
		if r.Method != http.MethodGet {
			if err := bindJSON(w, r, &req); err != nil {
				rt.fail(w, r, err)
				return
			}
		}
		data, err := h(r, req)
		if err != nil {
			rt.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{Data: data})
	}
}

// bindJSON decodes a strict JSON body. An empty body leaves v untouched.
func bindJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Join(ErrInvalidRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (rt *Router) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		rt.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), logger.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, Response{Error: &ErrorDetail{Code: code, Message: msg}})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrUnknownEvent):
		return http.StatusNotFound, "unknown_event"
	case errors.Is(err, ErrEntityNotFound),
		errors.Is(err, notifications.ErrNotificationNotFound),
		errors.Is(err, notifications.ErrRecipientNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, notifications.ErrInvalidTargetScope),
		errors.Is(err, notifications.ErrInvalidTargetRole),
		errors.Is(err, notifications.ErrMissingTargetIDs),
		errors.Is(err, notifications.ErrInvalidMessage):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, notifications.ErrPreferencesUnavailable),
		errors.Is(err, errStreamUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (rt *Router) requireRecipient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := RecipientFromContext(r.Context()); !ok {
			rt.fail(w, r, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rt *Router) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := RecipientFromContext(r.Context())
		switch {
		case !ok:
			rt.fail(w, r, errUnauthenticated)
		case rec.Role != notifications.RoleAdmin:
			rt.fail(w, r, errForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

type empty struct{}

type listMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// listOptions reads ?limit=&offset=&unread=true&category=order,delivery.
func listOptions(r *http.Request) (notifications.ListOptions, error) {
	q := r.URL.Query()
	opts := notifications.ListOptions{Limit: defaultPageLimit}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, errors.Join(ErrInvalidRequest, errors.New("limit must be a positive integer"))
		}
		opts.Limit = min(n, maxPageLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, errors.Join(ErrInvalidRequest, errors.New("offset must be a non-negative integer"))
		}
		opts.Offset = n
	}
	if v := q.Get("unread"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.Join(ErrInvalidRequest, errors.New("unread must be a boolean"))
		}
		opts.OnlyUnread = b
	}
	for _, c := range strings.Split(q.Get("category"), ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		cat := notifications.Category(c)
		if !cat.Valid() {
			return opts, errors.Join(ErrInvalidRequest, errors.New("unknown category "+c))
		}
		opts.Categories = append(opts.Categories, cat)
	}
	return opts, nil
}

type page struct {
	Items []notifications.Notification `json:"items"`
	Meta  listMeta                     `json:"meta"`
}

func (rt *Router) listFor(r *http.Request, rec notifications.Recipient) (any, error) {
	opts, err := listOptions(r)
	if err != nil {
		return nil, err
	}
	items, err := rt.svc.Notifier().List(r.Context(), rec, opts)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []notifications.Notification{}
	}
	return page{Items: items, Meta: listMeta{Limit: opts.Limit, Offset: opts.Offset, Count: len(items)}}, nil
}

func (rt *Router) list(r *http.Request, _ empty) (any, error) {
	rec, _ := RecipientFromContext(r.Context())
	return rt.listFor(r, rec)
}

func (rt *Router) listPublic(r *http.Request, _ empty) (any, error) {
	return rt.listFor(r, notifications.Public())
}

func (rt *Router) unreadCount(r *http.Request, _ empty) (any, error) {
	rec, _ := RecipientFromContext(r.Context())
	n, err := rt.svc.Notifier().CountUnread(r.Context(), rec)
	if err != nil {
		return nil, err
	}
	return map[string]int{"count": n}, nil
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

func (rt *Router) markRead(r *http.Request, req markReadRequest) (any, error) {
	if len(req.IDs) == 0 {
		return nil, errors.Join(ErrInvalidRequest, errors.New("ids are required"))
	}
	rec, _ := RecipientFromContext(r.Context())
	if err := rt.svc.Notifier().MarkRead(r.Context(), rec, req.IDs...); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (rt *Router) markAllRead(r *http.Request, _ empty) (any, error) {
	rec, _ := RecipientFromContext(r.Context())
	if err := rt.svc.Notifier().MarkAllRead(r.Context(), rec); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func gatedRecipient(r *http.Request) (notifications.Recipient, error) {
	rec, _ := RecipientFromContext(r.Context())
	if !rec.Gated() {
		return rec, errors.Join(ErrInvalidRequest, errors.New("preferences apply to volunteers and customers only"))
	}
	return rec, nil
}

func (rt *Router) getPreferences(r *http.Request, _ empty) (any, error) {
	rec, err := gatedRecipient(r)
	if err != nil {
		return nil, err
	}
	prefs, err := rt.svc.Notifier().GetPreferences(r.Context(), rec)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = &notifications.Preferences{}
	}
	return prefs, nil
}

func (rt *Router) updatePreferences(r *http.Request, patch notifications.Preferences) (any, error) {
	rec, err := gatedRecipient(r)
	if err != nil {
		return nil, err
	}
	return rt.svc.Notifier().UpdatePreferences(r.Context(), rec, patch)
}

func (rt *Router) announce(r *http.Request, a Announcement) (any, error) {
	return rt.svc.CreateSystemAnnouncement(r.Context(), a)
}

func (rt *Router) alertAdmins(r *http.Request, a AdminAlert) (any, error) {
	return rt.svc.NotifyAdmins(r.Context(), a)
}

func (rt *Router) trigger(r *http.Request, p EventPayload) (any, error) {
	event := notifications.EventType(chi.URLParam(r, "event"))
	return rt.svc.Trigger(r.Context(), event, p)
}

// stream pushes new notifications as datastar signal patches. Callers
// without an identity follow the public board.
func (rt *Router) stream(w http.ResponseWriter, r *http.Request) {
	if rt.feed == nil {
		rt.fail(w, r, errStreamUnavailable)
		return
	}
	rec, ok := RecipientFromContext(r.Context())
	if !ok {
		rec = notifications.Public()
	}

	ctx := r.Context()
	updates := rt.feed.Subscribe(ctx, rec)
	sse := datastar.NewSSE(w, r)

	if err := rt.patchUnread(ctx, sse, rec, nil); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case n, open := <-updates:
			if !open {
				return
			}
			if err := rt.patchUnread(ctx, sse, rec, &n); err != nil {
				rt.logger.DebugContext(ctx, "notification stream closed", logger.Error(err))
				return
			}
		}
	}
}

type streamSignals struct {
	Unread       int                         `json:"unread"`
	Notification *notifications.Notification `json:"notification,omitempty"`
}

func (rt *Router) patchUnread(ctx context.Context, sse *datastar.ServerSentEventGenerator, rec notifications.Recipient, n *notifications.Notification) error {
	signals := streamSignals{Notification: n}
	if !rec.IsPublic() {
		count, err := rt.svc.Notifier().CountUnread(ctx, rec)
		if err != nil {
			rt.logger.WarnContext(ctx, "failed to count unread notifications", logger.Error(err))
		}
		signals.Unread = count
	}
	data, err := json.Marshal(signals)
	if err != nil {
		return err
	}
	return sse.PatchSignals(data)
}
