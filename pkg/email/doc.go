// Package email sends transactional emails through a provider-agnostic
// EmailSender. Postmark is used in production; DevSender writes messages to
// disk for local development.
//
// NewFromConfig chooses between the two and returns ErrNotConfigured when
// neither is set up, letting callers fall back to in-app delivery only.
//
// HTML bodies for notification emails are produced by the templates
// subpackage.
package email
