package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// PostmarkSender delivers notification emails through Postmark.
type PostmarkSender struct {
	client  *postmark.Client
	from    string
	replyTo string
}

var _ EmailSender = (*PostmarkSender)(nil)

// NewPostmarkClient validates cfg and returns a Postmark-backed sender.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	var errs []error
	if cfg.PostmarkServerToken == "" {
		errs = append(errs, errors.New("PostmarkServerToken is required"))
	}
	if cfg.PostmarkAccountToken == "" {
		errs = append(errs, errors.New("PostmarkAccountToken is required"))
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		errs = append(errs, errors.New("SenderEmail must be a valid email address"))
	}
	if !emailRegex.MatchString(cfg.SupportEmail) {
		errs = append(errs, errors.New("SupportEmail must be a valid email address"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}

	return &PostmarkSender{
		client:  postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:    cfg.SenderEmail,
		replyTo: cfg.SupportEmail,
	}, nil
}

// SendEmail sends one transactional message. The tag carries the event type
// so Postmark statistics split by notification kind.
func (c *PostmarkSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	msg := postmark.Email{
		From:       c.from,
		ReplyTo:    c.replyTo,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TextBody:   params.BodyText,
		TrackOpens: true,
		TrackLinks: "HtmlAndText",
	}
	resp, err := c.client.SendEmail(ctx, msg)
	switch {
	case err != nil:
		return errors.Join(ErrFailedToSendEmail, err)
	case resp.ErrorCode != 0:
		return errors.Join(ErrFailedToSendEmail,
			fmt.Errorf("postmark rejected message to %s: code %d: %s", params.SendTo, resp.ErrorCode, resp.Message))
	}
	return nil
}
