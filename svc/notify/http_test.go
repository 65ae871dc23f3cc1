package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestlane/notifykit/pkg/logger"
	"github.com/harvestlane/notifykit/pkg/notifications"
)

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *ErrorDetail    `json:"error"`
}

func newTestRouter(t *testing.T, opts ...RouterOption) (*testEnv, http.Handler) {
	t.Helper()
	env := newTestEnv(t)
	opts = append([]RouterOption{WithFeed(env.feed), WithRouterLogger(logger.Discard())}, opts...)
	return env, NewRouter(env.svc, opts...)
}

func do(t *testing.T, h http.Handler, method, path string, as *notifications.Recipient, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set(HeaderRecipientID, as.ID)
		req.Header.Set(HeaderRecipientRole, string(as.Role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func ptr(r notifications.Recipient) *notifications.Recipient { return &r }

var (
	asAdmin    = ptr(notifications.Admin("auth-admin"))
	asCustomer = ptr(notifications.Customer("C1"))
)

func TestRouter_Health(t *testing.T) {
	t.Parallel()
	_, h := newTestRouter(t, WithReadinessCheck(func(context.Context) error { return errors.New("db down") }))

	rec, _ := do(t, h, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_RequiresIdentity(t *testing.T) {
	t.Parallel()
	_, h := newTestRouter(t)

	rec, resp := do(t, h, http.MethodGet, "/notifications", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unauthorized", resp.Error.Code)

	rec, _ = do(t, h, http.MethodPost, "/announcements", asCustomer, Announcement{Title: "x", Message: "y"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	bogus := &notifications.Recipient{ID: "C1", Role: "superuser"}
	rec, _ = do(t, h, http.MethodGet, "/notifications", bogus, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/notifications", asCustomer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_EventToInbox(t *testing.T) {
	t.Parallel()
	_, h := newTestRouter(t)

	rec, resp := do(t, h, http.MethodPost, "/events/order_update", asAdmin, EventPayload{OrderID: "O1", Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res notifications.DispatchResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, 2, res.Created)

	rec, resp = do(t, h, http.MethodGet, "/notifications/unread-count", asCustomer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, string(resp.Data))

	rec, resp = do(t, h, http.MethodGet, "/notifications?unread=true&category=order", asCustomer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p page
	require.NoError(t, json.Unmarshal(resp.Data, &p))
	require.Len(t, p.Items, 1)
	assert.Contains(t, p.Items[0].Title, "confirmed")
	assert.Equal(t, 1, p.Meta.Count)

	rec, resp = do(t, h, http.MethodPost, "/notifications/read", asCustomer, markReadRequest{IDs: []string{p.Items[0].ID, "not-mine"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Data))

	_, resp = do(t, h, http.MethodGet, "/notifications/unread-count", asCustomer, nil)
	assert.JSONEq(t, `{"count":0}`, string(resp.Data))
}

func TestRouter_ReadAll(t *testing.T) {
	t.Parallel()
	_, h := newTestRouter(t)
	volunteer := ptr(notifications.Volunteer("auth-v1"))

	rec, _ := do(t, h, http.MethodPost, "/events/zone_assigned", asAdmin, EventPayload{VolunteerID: "V1", ZoneID: "Z1"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, http.MethodPost, "/events/challenge_milestone", asAdmin, EventPayload{VolunteerID: "V1", Milestone: "ten_orders"})
	require.Equal(t, http.StatusOK, rec.Code)

	_, resp := do(t, h, http.MethodGet, "/notifications/unread-count", volunteer, nil)
	assert.JSONEq(t, `{"count":2}`, string(resp.Data))

	rec, _ = do(t, h, http.MethodPost, "/notifications/read-all", volunteer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, resp = do(t, h, http.MethodGet, "/notifications/unread-count", volunteer, nil)
	assert.JSONEq(t, `{"count":0}`, string(resp.Data))
}

func TestRouter_BadRequests(t *testing.T) {
	t.Parallel()
	_, h := newTestRouter(t)

	rec, resp := do(t, h, http.MethodPost, "/events/bogus", asAdmin, EventPayload{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_event", resp.Error.Code)

	rec, _ = do(t, h, http.MethodPost, "/events/order_created", asAdmin, EventPayload{OrderID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/events/order_created", asAdmin, map[string]string{"unexpected": "field"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/notifications?limit=-1", asCustomer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/notifications?category=spam", asCustomer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/notifications/read", asCustomer, markReadRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/events/delivery_update", asAdmin, EventPayload{RequestID: "R9", Status: "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/announcements", asAdmin, Announcement{
		Title: "x", Message: "y", Target: notifications.TargetingSpec{Scope: notifications.ScopeIndividual},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AnnouncementReachesPublicBoard(t *testing.T) {
	t.Parallel()
	_, h := newTestRouter(t)

	rec, _ := do(t, h, http.MethodPost, "/announcements", asAdmin, Announcement{Title: "Maintenance", Message: "Site down 10pm-11pm"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := do(t, h, http.MethodGet, "/public/notifications", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p page
	require.NoError(t, json.Unmarshal(resp.Data, &p))
	require.Len(t, p.Items, 1)
	assert.Equal(t, "Maintenance", p.Items[0].Title)
	assert.Equal(t, notifications.RolePublic, p.Items[0].RecipientRole)
}

func TestRouter_AdminAlerts(t *testing.T) {
	t.Parallel()
	_, h := newTestRouter(t)

	rec, _ := do(t, h, http.MethodPost, "/admin/alerts", asAdmin, AdminAlert{Title: "Low stock", Message: "Eggs running out"})
	require.Equal(t, http.StatusOK, rec.Code)

	_, resp := do(t, h, http.MethodGet, "/notifications", asAdmin, nil)
	var p page
	require.NoError(t, json.Unmarshal(resp.Data, &p))
	require.Len(t, p.Items, 1)
	assert.Equal(t, notifications.CategoryAdmin, p.Items[0].Category)
}

func TestRouter_Preferences(t *testing.T) {
	t.Parallel()
	env, h := newTestRouter(t)

	rec, resp := do(t, h, http.MethodGet, "/preferences", asCustomer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, string(resp.Data))

	rec, resp = do(t, h, http.MethodPatch, "/preferences", asCustomer, map[string]bool{"order_updates": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"order_updates":false}`, string(resp.Data))

	prefs, err := env.dir.GetPreferences(context.Background(), "C1", notifications.RoleCustomer)
	require.NoError(t, err)
	require.NotNil(t, prefs)
	require.NotNil(t, prefs.OrderUpdates)
	assert.False(t, *prefs.OrderUpdates)

	rec, _ = do(t, h, http.MethodGet, "/preferences", asAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_StreamUnavailableWithoutFeed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	h := NewRouter(env.svc, WithRouterLogger(logger.Discard()))

	rec, _ := do(t, h, http.MethodGet, "/notifications/stream", asCustomer, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_StreamPushesNewNotifications(t *testing.T) {
	t.Parallel()
	env, h := newTestRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/notifications/stream", nil).WithContext(ctx)
	req.Header.Set(HeaderRecipientID, "C1")
	req.Header.Set(HeaderRecipientRole, string(notifications.RoleCustomer))
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool {
		return env.feed.Subscribers(notifications.Customer("C1")) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := env.svc.NotifyPaymentVerified(context.Background(), "O1")
	require.NoError(t, err)

	// give the handler a moment to flush the patch before disconnecting
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after disconnect")
	}

	body := rec.Body.String()
	assert.Contains(t, body, `"unread":0`)
	assert.Contains(t, body, "Payment received for order #1001")
	assert.Contains(t, body, `"unread":1`)
}
