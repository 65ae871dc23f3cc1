package notify

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/harvestlane/notifykit/pkg/notifications"
)

// Identity headers set by the upstream gateway after authentication.
const (
	HeaderRecipientID   = "X-Recipient-ID"
	HeaderRecipientRole = "X-Recipient-Role"
)

type recipientKey struct{}

func WithRecipient(ctx context.Context, r notifications.Recipient) context.Context {
	return context.WithValue(ctx, recipientKey{}, r)
}

func RecipientFromContext(ctx context.Context) (notifications.Recipient, bool) {
	r, ok := ctx.Value(recipientKey{}).(notifications.Recipient)
	return r, ok
}

// IdentityMiddleware reads the identity headers into the request context.
// Missing or malformed identities are left out; handlers decide whether they
// need one.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := notifications.Recipient{
			ID:   strings.TrimSpace(r.Header.Get(HeaderRecipientID)),
			Role: notifications.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRecipientRole)))),
		}
		if rec.ID != "" && rec.Valid() && !rec.IsPublic() {
			r = r.WithContext(WithRecipient(r.Context(), rec))
		}
		next.ServeHTTP(w, r)
	})
}

// LoggerExtractor enriches log records with the caller's identity.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if r, ok := RecipientFromContext(ctx); ok {
			return slog.String("recipient", r.Key()), true
		}
		return slog.Attr{}, false
	}
}
