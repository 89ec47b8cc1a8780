//go:build windows

package process

import (
	"os"
	"os/exec"
	"strconv"
)

// KillProcessGroup kills the browser and its children using taskkill.
// /F = force kill, /T = terminate child processes (tree kill).
func KillProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run() // #nosec G204 -- pid is numeric
}

// Alive reports whether a process with the given PID still exists.
// On Windows FindProcess opens a handle and fails when the PID is gone.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
