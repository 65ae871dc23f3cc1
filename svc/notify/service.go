package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/harvestlane/notifykit/pkg/logger"
	"github.com/harvestlane/notifykit/pkg/notifications"
)

// Service hosts the event triggers: each loads its context from the Source,
// builds the messages and hands them to the notification pipeline.
type Service struct {
	notifier *notifications.Notifier
	source   Source
	guard    IdempotencyGuard
	logger   *slog.Logger
}

type Option func(*Service)

// WithGuard enables duplicate suppression for trigger invocations.
func WithGuard(g IdempotencyGuard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(notifier *notifications.Notifier, source Source, opts ...Option) *Service {
	s := &Service{
		notifier: notifier,
		source:   source,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("notify"))
	return s
}

// Notifier exposes the underlying pipeline for the reading surface.
func (s *Service) Notifier() *notifications.Notifier { return s.notifier }

// delivery is one dispatch within a trigger: either an explicit recipient
// list or a targeting spec to resolve.
type delivery struct {
	target     *notifications.TargetingSpec
	recipients []notifications.Recipient
	msg        notifications.Message
}

func toRecipients(rs ...notifications.Recipient) delivery {
	return delivery{recipients: rs}
}

func toAdmins() delivery {
	spec := notifications.TargetRole(notifications.RoleAdmin)
	return delivery{target: &spec}
}

func (d delivery) with(msg notifications.Message) delivery {
	d.msg = msg
	return d
}

// run claims key and performs the deliveries. All deliveries are attempted;
// their errors are joined. The key is released when anything failed so a
// retry can go through.
func (s *Service) run(ctx context.Context, key string, deliveries ...delivery) (notifications.DispatchResult, error) {
	claimed := false
	if s.guard != nil && key != "" {
		ok, err := s.guard.Claim(ctx, key)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "idempotency guard unavailable, proceeding without it",
				slog.String("key", key), logger.Error(err))
		case !ok:
			s.logger.InfoContext(ctx, "duplicate event skipped", slog.String("key", key))
			return notifications.DispatchResult{Duplicate: true}, nil
		default:
			claimed = true
		}
	}

	var (
		total notifications.DispatchResult
		errs  []error
	)
	for _, d := range deliveries {
		var (
			res notifications.DispatchResult
			err error
		)
		if d.target != nil {
			res, err = s.notifier.Notify(ctx, *d.target, d.msg)
		} else {
			res, err = s.notifier.NotifyRecipients(ctx, d.recipients, d.msg)
		}
		merge(&total, res)
		if err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil && claimed {
		if rerr := s.guard.Release(context.WithoutCancel(ctx), key); rerr != nil {
			s.logger.WarnContext(ctx, "failed to release idempotency key",
				slog.String("key", key), logger.Error(rerr))
		}
	}
	return total, err
}

func merge(dst *notifications.DispatchResult, src notifications.DispatchResult) {
	dst.Created += src.Created
	dst.Suppressed += src.Suppressed
	dst.Failed += src.Failed
	dst.Notifications = append(dst.Notifications, src.Notifications...)
}
