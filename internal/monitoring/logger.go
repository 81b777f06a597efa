// Package monitoring is the process-level diagnostic output of the command
// tools: stage timings and per-class summaries.
package monitoring

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Logf is the package logger. It defaults to log.Printf; SetLogger
// redirects or mutes it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var now = time.Now

// Timed runs fn as a named stage and logs how long it took.
func Timed(stage string, fn func() error) error {
	start := now()
	err := fn()
	elapsed := now().Sub(start).Round(time.Millisecond)
	if err != nil {
		Logf("%s: failed after %s: %v", stage, elapsed, err)
		return err
	}
	Logf("%s: done in %s", stage, elapsed)
	return nil
}

// LogClassCounts logs per-class counts for a split on one line, in class
// name order.
func LogClassCounts(split string, counts map[string]int) {
	Logf("%s: %s", split, FormatClassCounts(counts))
}

// FormatClassCounts renders counts as "A=1 B=2" in class name order, or
// "no records".
func FormatClassCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "no records"
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, counts[name])
	}
	return strings.Join(parts, " ")
}
