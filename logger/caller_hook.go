package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

const maxCallerDepth = 24

// callerHook rewrites entry.Caller to the first frame outside logrus and
// this package, so file:line points at the code that logged.
type callerHook struct{}

func (callerHook) Levels() []logrus.Level { return logrus.AllLevels }

func (callerHook) Fire(entry *logrus.Entry) error {
	if frame, ok := externalCaller(); ok {
		entry.Caller = &frame
	}
	return nil
}

func externalCaller() (runtime.Frame, bool) {
	pcs := make([]uintptr, maxCallerDepth)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs)])
	for {
		frame, more := frames.Next()
		if !internalFrame(frame) {
			return frame, frame.Function != ""
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

func internalFrame(f runtime.Frame) bool {
	if strings.Contains(f.Function, "sirupsen/logrus") {
		return true
	}
	return strings.HasPrefix(f.Function, "symdir/logger.") && !strings.HasSuffix(f.File, "_test.go")
}
