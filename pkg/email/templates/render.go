package templates

import (
	"bytes"
	"context"
	"strings"

	"github.com/a-h/templ"
)

// Render runs a component into a string. Notification emails are small, so
// the whole document is buffered before it is handed to the provider.
func Render(ctx context.Context, tpl templ.Component) (string, error) {
	buf := new(bytes.Buffer)
	if err := tpl.Render(ctx, buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PlainText renders the text/plain alternative of a notification email.
func PlainText(data NotificationEmail) string {
	var b strings.Builder
	if data.Critical {
		b.WriteString("ACTION REQUIRED\n\n")
	}
	b.WriteString(data.Title)
	b.WriteString("\n\n")
	if data.Body != "" {
		b.WriteString(data.Body)
		b.WriteString("\n\n")
	}
	if data.ActionURL != "" {
		label := data.ActionLabel
		if label == "" {
			label = "View details"
		}
		b.WriteString(label + ": " + data.ActionURL + "\n\n")
	}
	if data.AppName != "" {
		b.WriteString("-- \n" + data.AppName + "\n")
	}
	return b.String()
}
