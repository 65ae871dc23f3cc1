package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// NotificationEmail is the view model of a single notification email.
type NotificationEmail struct {
	AppName     string
	Title       string
	Body        string
	ActionURL   string
	ActionLabel string
	Critical    bool
}

// Notification renders the transactional layout shared by every notification
// email. All text is escaped and the action URL is sanitised by templ.
func Notification(data NotificationEmail) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
		b.WriteString(templ.EscapeString(data.Title))
		b.WriteString(`</title></head><body style="font-family:Helvetica,Arial,sans-serif;background:#f6f6f6;margin:0;padding:24px">`)
		b.WriteString(`<table role="presentation" width="100%" style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:8px;padding:24px">`)

		if data.AppName != "" {
			fmt.Fprintf(&b, `<tr><td style="color:#888;font-size:12px;text-transform:uppercase">%s</td></tr>`, templ.EscapeString(data.AppName))
		}
		if data.Critical {
			b.WriteString(`<tr><td style="background:#fdecea;color:#b3261e;padding:8px 12px;border-radius:4px;font-weight:bold">Action required</td></tr>`)
		}

		fmt.Fprintf(&b, `<tr><td><h1 style="font-size:20px;margin:16px 0">%s</h1></td></tr>`, templ.EscapeString(data.Title))

		b.WriteString(`<tr><td style="font-size:15px;line-height:1.5;color:#333">`)
		for i, line := range strings.Split(data.Body, "\n") {
			if i > 0 {
				b.WriteString("<br>")
			}
			b.WriteString(templ.EscapeString(line))
		}
		b.WriteString(`</td></tr>`)

		if data.ActionURL != "" {
			label := data.ActionLabel
			if label == "" {
				label = "View details"
			}
			fmt.Fprintf(&b,
				`<tr><td style="padding-top:24px"><a href="%s" style="background:#1a73e8;color:#ffffff;padding:10px 18px;border-radius:4px;text-decoration:none">%s</a></td></tr>`,
				templ.EscapeString(string(templ.URL(data.ActionURL))),
				templ.EscapeString(label),
			)
		}

		b.WriteString(`</table></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
