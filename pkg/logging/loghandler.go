//go:build !windows

package logging

import (
	"io"
	"log/syslog"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// InitLogging builds the process logger and routes the standard library
// logger through it.
func InitLogging(reqdebug bool, reqsyslog bool, reqstructlog bool) zerolog.Logger {
	return initLogging(os.Stderr, reqdebug, reqsyslog, reqstructlog)
}

func initLogging(out io.Writer, reqdebug bool, reqsyslog bool, reqstructlog bool) zerolog.Logger {
	var mainWriter io.Writer
	if reqstructlog {
		mainWriter = out
		zerolog.TimeFieldFormat = time.RFC1123Z
	} else {
		mainWriter = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC1123Z}
	}

	var syslogErr error
	if reqsyslog {
		w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "lightldap")
		if err == nil {
			mainWriter = zerolog.MultiLevelWriter(mainWriter, zerolog.SyslogLevelWriter(w))
		} else {
			syslogErr = err
		}
	}

	logr := zerolog.New(mainWriter).Level(level(reqdebug)).With().Timestamp().Logger()
	if syslogErr != nil {
		logr.Warn().Err(syslogErr).Msg("syslog unavailable, logging to stderr only")
	}

	RewireLogging(logr)

	return logr
}
