// ABOUTME: PID file read/write helpers shared by the supervisor
// ABOUTME: Files hold a single decimal PID; anything else is treated as corrupt

package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// writePIDFile records the child PID as decimal text, creating parent
// directories as needed.
func writePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating pid directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// readPIDFile parses the recorded PID. A missing file returns the
// underlying os.IsNotExist error unchanged so callers can distinguish
// "never started" from "corrupt".
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupt pid file %s: %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("corrupt pid file %s: pid %d out of range", path, pid)
	}
	return pid, nil
}

func removePIDFile(path string) {
	_ = os.Remove(path)
}

// processAlive probes the PID with signal 0. Both "no such process" and
// "not ours to signal" count as not alive for supervision purposes.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
