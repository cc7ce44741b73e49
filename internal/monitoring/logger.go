// Package monitoring holds the diagnostic loggers shared by the variability
// pipeline and the report generator.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger so tests can capture or mute pipeline chatter.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Stagef logs the start or end of a long report stage, e.g. one variability
// type or one magnitude. Stage lines are starred so they stand out from the
// per-key computation messages.
func Stagef(format string, v ...interface{}) {
	Logf("*** "+format+" ***", v...)
}
