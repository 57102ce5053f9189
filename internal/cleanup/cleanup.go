// Package cleanup provides small helpers for consistent resource teardown.
package cleanup

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes an io.Closer and logs a warning if the close fails,
// instead of silently discarding the error.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}
