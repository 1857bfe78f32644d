package lms

import goLog "log"

// Logger receives diagnostic events from the package: an aux-data
// blob that is too short, truncated, or fails its MAC and is demoted
// to an empty cache. It is never required for correctness.
type Logger interface {
	Logf(format string, a ...interface{})
}

type dummyLogger struct{}

func (logger *dummyLogger) Logf(format string, a ...interface{}) {}

type stdlibLogger struct{}

func (logger *stdlibLogger) Logf(format string, a ...interface{}) {
	goLog.Printf(format, a...)
}

var log Logger = &dummyLogger{}

// EnableLogging sends package diagnostics to the standard log package.
// For more control, use SetLogger.
func EnableLogging() {
	SetLogger(&stdlibLogger{})
}

// SetLogger installs logger as the destination for package
// diagnostics. Passing nil disables logging.
func SetLogger(logger Logger) {
	if logger == nil {
		log = &dummyLogger{}
		return
	}
	log = logger
}
