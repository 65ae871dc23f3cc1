package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harvestlane/notifykit/pkg/email"
	"github.com/harvestlane/notifykit/pkg/email/templates"
)

// Delivery is one persisted record paired with the recipient contact details
// a channel needs.
type Delivery struct {
	Notification Notification
	Recipient    Recipient
}

// ChannelSender delivers a persisted notification over one external channel.
type ChannelSender interface {
	Channel() Channel
	Send(ctx context.Context, d Delivery) error
}

// ErrMissingAddress is returned when the recipient has no address for the channel.
var ErrMissingAddress = errors.New("recipient has no address for channel")

// EmailChannel sends notifications as transactional emails.
type EmailChannel struct {
	sender  email.EmailSender
	appName string
	baseURL string
}

type EmailChannelOption func(*EmailChannel)

// WithAppName sets the product name shown in the email header.
func WithAppName(name string) EmailChannelOption {
	return func(c *EmailChannel) { c.appName = name }
}

// WithBaseURL makes relative action URLs absolute.
func WithBaseURL(u string) EmailChannelOption {
	return func(c *EmailChannel) { c.baseURL = strings.TrimRight(u, "/") }
}

// NewEmailChannel wraps an email sender. A nil sender yields an unconfigured
// channel whose Send is a successful no-op.
func NewEmailChannel(sender email.EmailSender, opts ...EmailChannelOption) *EmailChannel {
	c := &EmailChannel{sender: sender}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *EmailChannel) Channel() Channel { return ChannelEmail }

// Configured reports whether a real sender is wired.
func (c *EmailChannel) Configured() bool { return c != nil && c.sender != nil }

func (c *EmailChannel) Send(ctx context.Context, d Delivery) error {
	if !c.Configured() {
		return nil
	}
	if d.Recipient.Email == "" {
		return ErrMissingAddress
	}

	n := d.Notification
	view := templates.NotificationEmail{
		AppName:   c.appName,
		Title:     n.Title,
		Body:      n.Body,
		ActionURL: c.actionURL(n.ActionURL),
		Critical:  n.Priority == PriorityCritical,
	}
	html, err := templates.Render(ctx, templates.Notification(view))
	if err != nil {
		return fmt.Errorf("render notification email: %w", err)
	}

	return c.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   d.Recipient.Email,
		Subject:  Subject(n),
		BodyHTML: html,
		BodyText: templates.PlainText(view),
		Tag:      string(n.EventType),
	})
}

func (c *EmailChannel) actionURL(u string) string {
	if u == "" || c.baseURL == "" || !strings.HasPrefix(u, "/") {
		return u
	}
	return c.baseURL + u
}

// Subject builds the email subject line for a notification.
func Subject(n Notification) string {
	if n.Priority == PriorityCritical {
		return "[Action required] " + n.Title
	}
	return n.Title
}
