//go:build windows

// ABOUTME: Windows process handling for worker processes
// ABOUTME: No graceful signal exists, so terminate and kill both end the process

package worker

import (
	"os"
	"os/exec"
)

func setupProcessGroup(cmd *exec.Cmd) {}

func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}
