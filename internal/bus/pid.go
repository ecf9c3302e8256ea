package bus

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

type pidManager struct {
	path string
}

func defaultPidManager() (*pidManager, error) {
	p, err := PidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: p}, nil
}

func (m *pidManager) checkExisting() error {
	pidData, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil // no existing daemon
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil || !m.isProcessAlive(pid) {
		// invalid or stale pid file
		_ = os.Remove(m.path)
		return nil
	}

	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (m *pidManager) isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 only checks that the process exists
	return proc.Signal(syscall.Signal(0)) == nil
}

func (m *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(m.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (m *pidManager) remove() error {
	return os.Remove(m.path)
}

func CheckExistingDaemon() error {
	m, err := defaultPidManager()
	if err != nil {
		return err
	}
	return m.checkExisting()
}

func CreatePidFile() error {
	m, err := defaultPidManager()
	if err != nil {
		return err
	}
	return m.create()
}

func RemovePidFile() error {
	m, err := defaultPidManager()
	if err != nil {
		return err
	}
	return m.remove()
}
