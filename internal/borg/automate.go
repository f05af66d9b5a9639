package borg

import (
	"fmt"
	"strings"

	"github.com/danmuck/utilctl/internal/tools"
)

const timerUnit = "borgadm.timer"

// Automation manages the systemd user timer that drives scheduled
// backups.
type Automation struct {
	Runner tools.CommandRunner
}

func (a Automation) systemctl(args ...string) (string, error) {
	full := append([]string{"--user"}, args...)
	stdout, stderr, code, err := a.Runner.Run("systemctl", full...)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return string(stdout), fmt.Errorf("%w: systemctl %s (exit %d): %s",
			ErrSubprocess, strings.Join(full, " "), code, msg)
	}
	return string(stdout), nil
}

// Enable starts the timer and enables it at login.
func (a Automation) Enable() error {
	_, err := a.systemctl("enable", "--now", timerUnit)
	return err
}

// Disable stops the timer and removes it from login startup.
func (a Automation) Disable() error {
	_, err := a.systemctl("disable", "--now", timerUnit)
	return err
}

// Status reports whether the timer is active and enabled. systemctl
// exits nonzero for "inactive"/"disabled", so exit codes here are state
// answers, not failures; only a missing systemctl is an error.
func (a Automation) Status() (active, enabled bool, err error) {
	active, err = a.query("is-active", "active")
	if err != nil {
		return false, false, err
	}
	enabled, err = a.query("is-enabled", "enabled")
	if err != nil {
		return active, false, err
	}
	return active, enabled, nil
}

func (a Automation) query(verb, want string) (bool, error) {
	stdout, _, code, err := a.Runner.Run("systemctl", "--user", verb, timerUnit)
	if err != nil && code == 127 {
		return false, fmt.Errorf("%w: systemctl not found", ErrSubprocess)
	}
	return strings.TrimSpace(string(stdout)) == want, nil
}
