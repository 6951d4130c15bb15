// Package monitoring holds the diagnostic logger shared by the pipeline stages.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger so tests can capture or mute stage output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs through Logf with a WARNING prefix.
func Warnf(format string, v ...interface{}) {
	Logf("WARNING: %s", fmt.Sprintf(format, v...))
}
