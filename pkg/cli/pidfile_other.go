//go:build !unix

package cli

import "os"

// IsRunning checks if the process with the stored PID is still running.
func (p *PIDFile) IsRunning() bool {
	if p.PID <= 0 {
		return false
	}
	_, err := os.FindProcess(p.PID)
	return err == nil
}
