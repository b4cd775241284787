package ffmpeglib

import (
	"os/exec"
	"syscall"
)

const (
	createNewProcessGroup = 0x00000200
	idlePriorityClass     = 0x00000040
)

// configureCmd starts the encoder in its own process group at idle priority.
func configureCmd(cmd *exec.Cmd, bin string, args []string) bool {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNewProcessGroup | idlePriorityClass,
	}
	return true
}

func lowerPriority(int) error { return nil }
