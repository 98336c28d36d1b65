//go:build unix

package cli

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsRunning checks if the process with the stored PID is still running.
func (p *PIDFile) IsRunning() bool {
	if p.PID <= 0 {
		return false
	}
	// Signal 0 probes for existence. EPERM means it exists but is not ours.
	err := unix.Kill(p.PID, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
