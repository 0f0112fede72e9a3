package cmd

import (
	"fmt"
	"strings"
)

// isDBLockError returns true if the error chain contains a bbolt lock timeout.
// bbolt returns the string "timeout" when it cannot acquire the file lock
// within the configured deadline.
func isDBLockError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "timeout")
}

// diagnoseDBLock returns actionable guidance when a bbolt open fails due to
// lock contention. The usual holder is a pepvalid watch running on the same
// project.
func diagnoseDBLock(root string) string {
	return fmt.Sprintf("database is locked by another process\n"+
		"  → a pepvalid watch may be running on %s\n"+
		"  → find the process:  ps aux | grep pepvalid\n"+
		"  → stop it, then retry your command", root)
}
