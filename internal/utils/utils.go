package utils

import (
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// retryLogger forwards retryablehttp's leveled output to Log. Its chatty
// per-request lines are demoted to debug.
type retryLogger struct{}

func RetryLogger() retryablehttp.LeveledLogger { return retryLogger{} }

func (retryLogger) Error(msg string, kv ...interface{}) { Log.WithFields(fields(kv)).Warn(msg) }
func (retryLogger) Warn(msg string, kv ...interface{})  { Log.WithFields(fields(kv)).Debug(msg) }
func (retryLogger) Info(msg string, kv ...interface{})  { Log.WithFields(fields(kv)).Debug(msg) }
func (retryLogger) Debug(msg string, kv ...interface{}) { Log.WithFields(fields(kv)).Debug(msg) }

func fields(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		f[key] = kv[i+1]
	}
	return f
}
