package monitoring

import "log"

// Logf is the package-level diagnostic logger used across the culling
// pipeline. It defaults to log.Printf; tests or batch drivers can redirect
// or mute it via SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// Verbose gates per-cell chatter (one line per zeroed weight). Cell sweeps
// over large cubes emit thousands of lines when this is on.
var Verbose bool

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Verbosef logs only when Verbose is set.
func Verbosef(format string, v ...interface{}) {
	if Verbose {
		Logf(format, v...)
	}
}
