package log

import (
	"gopkg.in/Sirupsen/logrus.v0"
)

// Level aliases the logrus level so that the two packages can be mixed
// freely. Lower is more severe.
type Level = logrus.Level

const (
	PanicLevel = logrus.PanicLevel
	FatalLevel = logrus.FatalLevel
	ErrorLevel = logrus.ErrorLevel
	WarnLevel  = logrus.WarnLevel
	InfoLevel  = logrus.InfoLevel
	DebugLevel = logrus.DebugLevel
)
