package logging

import (
	"log"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Libraries such as the ldap client write through the standard log package.
// Their lines are re-emitted through zerolog so every line shares one format.

var (
	stdlogprefix = regexp.MustCompile(`^\d{4}\/\d{1,2}\/\d{1,2} \d{1,2}\:\d{1,2}\:\d{1,2} `)
)

type stdlogWriter struct {
	logr zerolog.Logger
}

func (e stdlogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(stdlogprefix.ReplaceAllString(string(p), ""))
	if msg != "" {
		e.logr.Info().Str("source", "stdlog").Msg(msg)
	}
	return len(p), nil
}

func level(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// RewireLogging sends standard library log output to logr.
func RewireLogging(logr zerolog.Logger) {
	log.SetFlags(0)
	log.SetOutput(stdlogWriter{logr: logr})
}
