// Package pgstore implements the notification storage, recipient directory
// and preference store on PostgreSQL through pgx/v5. The schema lives in
// internal/db/migrations.
package pgstore
