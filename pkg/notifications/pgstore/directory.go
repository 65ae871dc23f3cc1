package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/harvestlane/notifykit/pkg/notifications"
	"github.com/harvestlane/notifykit/pkg/pg"
)

// Directory reads recipients and their preferences from the application's
// volunteers, customers and auth_users tables.
type Directory struct {
	db DB
}

var (
	_ notifications.Directory       = (*Directory)(nil)
	_ notifications.PreferenceStore = (*Directory)(nil)
)

func NewDirectory(db DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) ListVolunteers(ctx context.Context) ([]notifications.VolunteerRecord, error) {
	rows, err := d.db.Query(ctx, `
		SELECT id, COALESCE(auth_id, ''), COALESCE(email, ''), name
		FROM volunteers ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.VolunteerRecord, error) {
		var v notifications.VolunteerRecord
		err := row.Scan(&v.ID, &v.AuthID, &v.Email, &v.Name)
		return v, err
	})
}

func (d *Directory) ListCustomers(ctx context.Context) ([]notifications.CustomerRecord, error) {
	rows, err := d.db.Query(ctx, `
		SELECT id, COALESCE(email, ''), name
		FROM customers ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.CustomerRecord, error) {
		var c notifications.CustomerRecord
		err := row.Scan(&c.ID, &c.Email, &c.Name)
		return c, err
	})
}

// ListAdminAuthUsers returns every auth user; the resolver applies the
// admin allow-list.
func (d *Directory) ListAdminAuthUsers(ctx context.Context) ([]notifications.AuthUser, error) {
	rows, err := d.db.Query(ctx, `SELECT id, email FROM auth_users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[notifications.AuthUser])
}

// preferenceQuery returns the table and key column holding prefs for role.
// Volunteers are keyed by their auth identity, the id they are addressed by.
func preferenceQuery(role notifications.Role) (table, key string, ok bool) {
	switch role {
	case notifications.RoleVolunteer:
		return "volunteers", "auth_id", true
	case notifications.RoleCustomer:
		return "customers", "id", true
	}
	return "", "", false
}

// GetPreferences returns (nil, nil) for unknown recipients, recipients
// without a stored record and roles with no preference model.
func (d *Directory) GetPreferences(ctx context.Context, id string, role notifications.Role) (*notifications.Preferences, error) {
	table, key, ok := preferenceQuery(role)
	if !ok || id == "" {
		return nil, nil
	}

	var raw []byte
	err := d.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT notification_preferences FROM %s WHERE %s = $1`, table, key), id,
	).Scan(&raw)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return decodePreferences(raw)
}

// UpdatePreferences merges patch into the stored record.
func (d *Directory) UpdatePreferences(ctx context.Context, id string, role notifications.Role, patch notifications.Preferences) (*notifications.Preferences, error) {
	table, key, ok := preferenceQuery(role)
	if !ok || id == "" {
		return nil, notifications.ErrPreferencesUnavailable
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = d.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s
		SET notification_preferences = COALESCE(notification_preferences, '{}'::jsonb) || $2::jsonb
		WHERE %s = $1
		RETURNING notification_preferences`, table, key), id, string(body),
	).Scan(&raw)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, notifications.ErrRecipientNotFound
		}
		return nil, err
	}
	return decodePreferences(raw)
}

func decodePreferences(raw []byte) (*notifications.Preferences, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var p notifications.Preferences
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode notification preferences: %w", err)
	}
	return &p, nil
}
