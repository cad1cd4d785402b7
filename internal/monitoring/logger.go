package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf logs chatty diagnostics: per-port probe misses, frame resyncs, key
// packet traffic. It is a no-op unless SetDebug(true) has been called.
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug routes Debugf to the current Logf when on, or back to a no-op.
// Call it after any SetLogger so Debugf picks up the replacement.
func SetDebug(on bool) {
	if on {
		f := Logf
		Debugf = func(format string, v ...interface{}) { f(format, v...) }
		return
	}
	Debugf = func(string, ...interface{}) {}
}
