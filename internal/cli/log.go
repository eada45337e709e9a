package cli

import (
	"fmt"
	"os"
	"strings"
)

// level ordering for MANSAGE_LOG filtering, low to high severity.
var levelOrder = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

func currentLevel() int {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("MANSAGE_LOG")))
	if v == "" {
		v = "info"
	}
	if n, ok := levelOrder[v]; ok {
		return n
	}
	return levelOrder["info"]
}

// Logf writes a level-gated diagnostic line to stderr, prefixed "mansage:".
func Logf(level, format string, args ...any) {
	n, ok := levelOrder[level]
	if !ok {
		n = levelOrder["info"]
	}
	if n < currentLevel() {
		return
	}
	fmt.Fprintf(os.Stderr, "mansage: "+format+"\n", args...)
}

func Debugf(format string, args ...any) { Logf("debug", format, args...) }
func Infof(format string, args ...any)  { Logf("info", format, args...) }
func Warnf(format string, args ...any)  { Logf("warn", format, args...) }
func Errorf(format string, args ...any) { Logf("error", format, args...) }
