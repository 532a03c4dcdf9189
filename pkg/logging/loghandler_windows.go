//go:build windows

package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// InitLogging builds the process logger. Syslog is not available on windows
// and reqsyslog is ignored.
func InitLogging(reqdebug bool, reqsyslog bool, reqstructlog bool) zerolog.Logger {
	return initLogging(os.Stderr, reqdebug, reqsyslog, reqstructlog)
}

func initLogging(out io.Writer, reqdebug bool, _ bool, reqstructlog bool) zerolog.Logger {
	var mainWriter io.Writer
	if reqstructlog {
		mainWriter = out
		zerolog.TimeFieldFormat = time.RFC1123Z
	} else {
		mainWriter = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC1123Z}
	}

	logr := zerolog.New(mainWriter).Level(level(reqdebug)).With().Timestamp().Logger()

	RewireLogging(logr)

	return logr
}
