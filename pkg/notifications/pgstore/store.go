package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/harvestlane/notifykit/pkg/notifications"
	"github.com/harvestlane/notifykit/pkg/pg"
)

// DB is the subset of *pgxpool.Pool the stores use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Store is the PostgreSQL notifications.Storage.
type Store struct {
	db DB
}

var _ notifications.Storage = (*Store)(nil)

func NewStore(db DB) *Store {
	return &Store{db: db}
}

var insertColumns = []string{
	"id", "recipient_id", "recipient_role", "event_type", "category", "priority",
	"title", "body", "action_url", "metadata", "is_read", "delivery_status",
	"channels", "created_at",
}

const selectColumns = `id::text, recipient_id, recipient_role, event_type, category, priority,
	title, body, action_url, metadata, is_read, delivery_status, channels, created_at`

// InsertMany writes all records with a single COPY.
func (s *Store) InsertMany(ctx context.Context, records []notifications.Notification) ([]notifications.Notification, error) {
	if len(records) == 0 {
		return records, nil
	}

	rows := make([][]any, 0, len(records))
	for _, n := range records {
		if err := n.Validate(); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(n.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: id %q", notifications.ErrInvalidNotification, n.ID)
		}
		metadata := n.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		if n.DeliveryStatus == "" {
			n.DeliveryStatus = notifications.DeliveryPending
		}
		rows = append(rows, []any{
			pgtype.UUID{Bytes: id, Valid: true},
			nullable(n.RecipientID),
			string(n.RecipientRole),
			string(n.EventType),
			string(n.Category),
			string(n.Priority),
			n.Title,
			n.Body,
			nullable(n.ActionURL),
			metadata,
			n.Read,
			string(n.DeliveryStatus),
			channelStrings(n.Channels),
			n.CreatedAt,
		})
	}

	copied, err := s.db.CopyFrom(ctx, pgx.Identifier{"notifications"}, insertColumns, pgx.CopyFromRows(rows))
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return nil, errors.Join(notifications.ErrInvalidNotification, err)
		}
		return nil, err
	}
	if int(copied) != len(records) {
		return nil, fmt.Errorf("copied %d of %d notifications", copied, len(records))
	}
	return records, nil
}

// UpdateDeliveryStatus never moves a failed record to another status.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, status notifications.DeliveryStatus, ids ...string) error {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE notifications
		SET delivery_status = $1
		WHERE id = ANY($2::text[]::uuid[])
		  AND (delivery_status <> 'failed' OR $1 = 'failed')`,
		string(status), ids)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*notifications.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notifications.ErrNotificationNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM notifications WHERE id = $1::uuid`, id)
	n, err := scanNotification(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, notifications.ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *Store) List(ctx context.Context, r notifications.Recipient, opts notifications.ListOptions) ([]notifications.Notification, error) {
	var (
		q    strings.Builder
		args = []any{string(r.Role), nullable(r.ID)}
	)
	q.WriteString(`SELECT ` + selectColumns + ` FROM notifications
		WHERE recipient_role = $1 AND recipient_id IS NOT DISTINCT FROM $2`)
	if opts.OnlyUnread {
		q.WriteString(` AND NOT is_read`)
	}
	if len(opts.Categories) > 0 {
		cats := make([]string, len(opts.Categories))
		for i, c := range opts.Categories {
			cats[i] = string(c)
		}
		args = append(args, cats)
		fmt.Fprintf(&q, ` AND category = ANY($%d::text[])`, len(args))
	}
	q.WriteString(` ORDER BY created_at DESC, id DESC`)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&q, ` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&q, ` OFFSET $%d`, len(args))
	}

	rows, err := s.db.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.Notification, error) {
		return scanNotification(row)
	})
}

func (s *Store) CountUnread(ctx context.Context, r notifications.Recipient) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE recipient_role = $1 AND recipient_id IS NOT DISTINCT FROM $2 AND NOT is_read`,
		string(r.Role), nullable(r.ID)).Scan(&n)
	return n, err
}

func (s *Store) MarkRead(ctx context.Context, r notifications.Recipient, ids ...string) error {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE recipient_role = $1 AND recipient_id IS NOT DISTINCT FROM $2
		  AND id = ANY($3::text[]::uuid[]) AND NOT is_read`,
		string(r.Role), nullable(r.ID), ids)
	return err
}

func (s *Store) MarkAllRead(ctx context.Context, r notifications.Recipient) error {
	_, err := s.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE recipient_role = $1 AND recipient_id IS NOT DISTINCT FROM $2 AND NOT is_read`,
		string(r.Role), nullable(r.ID))
	return err
}

func scanNotification(row pgx.Row) (notifications.Notification, error) {
	var (
		n           notifications.Notification
		recipientID *string
		actionURL   *string
		role        string
		eventType   string
		category    string
		priority    string
		status      string
		channels    []string
	)
	err := row.Scan(
		&n.ID, &recipientID, &role, &eventType, &category, &priority,
		&n.Title, &n.Body, &actionURL, &n.Metadata, &n.Read, &status, &channels, &n.CreatedAt,
	)
	if err != nil {
		return n, err
	}
	if recipientID != nil {
		n.RecipientID = *recipientID
	}
	if actionURL != nil {
		n.ActionURL = *actionURL
	}
	n.RecipientRole = notifications.Role(role)
	n.EventType = notifications.EventType(eventType)
	n.Category = notifications.Category(category)
	n.Priority = notifications.Priority(priority)
	n.DeliveryStatus = notifications.DeliveryStatus(status)
	n.Channels = make([]notifications.Channel, len(channels))
	for i, c := range channels {
		n.Channels[i] = notifications.Channel(c)
	}
	return n, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func channelStrings(chs []notifications.Channel) []string {
	out := make([]string, len(chs))
	for i, c := range chs {
		out[i] = string(c)
	}
	return out
}

// validIDs drops ids that cannot be notification ids, so a stray value never
// fails the uuid cast for the whole batch.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
