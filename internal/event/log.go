// Package event provides the shared logger used across the codebase.
package event

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Packages alias it as `var log = event.Log`.
var Log = logrus.StandardLogger()

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	Log.SetLevel(logrus.InfoLevel)
}

// Configure applies the level and output format. Unknown levels fall back to info,
// any format other than "json" selects the text formatter.
func Configure(level, format string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		Log.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
