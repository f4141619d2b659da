package utils

import (
	"io"

	"github.com/MrSnakeDoc/staywatch/internal/logger"
)

// Close closes c and ignores any error.
// Use for best-effort cleanup in defer where error handling is not critical.
func Close(c io.Closer) {
	_ = c.Close()
}

// MustClose closes c and logs any error under the given component name.
// Use for defer statements where we want to track close errors.
func MustClose(c io.Closer, log logger.Logger, component string) {
	if err := c.Close(); err != nil {
		log.Warn("failed to close",
			logger.String("component", component),
			logger.Error(err))
	}
}
