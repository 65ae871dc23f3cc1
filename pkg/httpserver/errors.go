package httpserver

import "errors"

// ErrStart indicates that the server failed to start or stopped abnormally.
var ErrStart = errors.New("failed to start HTTP server")
