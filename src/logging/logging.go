package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

func init() {
	// Output to stdout instead of the default stderr
	Log.Out = os.Stdout
	Log.SetLevel(logrus.InfoLevel)
}

// SetLoggingLevel sets the verbosity for the whole process. Unknown
// levels fall back to "info".
func SetLoggingLevel(level string) {
	switch level {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "warn":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	default:
		Log.SetLevel(logrus.InfoLevel)
	}
}

// Debug will switch the verbosity of the logger.
func Debug(t bool) {
	if t {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}
