package log

import (
	"io"

	"gopkg.in/Sirupsen/logrus.v0"
)

func init() {
	logrus.SetLevel(logrus.DebugLevel)
}

// Disable turns off all logging output, including warnings and errors.
// Used by tests and by --log=no.
func Disable() {
	modDebugMask = 0
	logrus.SetOutput(io.Discard)
}

// A LogContext adds fields to every log line (for example the current
// virtual time). Contexts are invoked at emit time, so registering one is
// free for disabled modules.
type LogContext interface {
	AddLogContext(e *EntryZ)
}

var contexts []LogContext

func AddContext(c LogContext) {
	contexts = append(contexts, c)
}
