package ffmpeglib

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureCmd runs the encoder at idle CPU and IO priority and makes sure it
// dies with us. It reports whether a nice wrapper was applied.
func configureCmd(cmd *exec.Cmd, bin string, args []string) bool {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGTERM,
	}
	nicePath, err := exec.LookPath("nice")
	if err != nil {
		return false
	}
	cmd.Path = nicePath
	wrapped := []string{"nice", "-n", "19"}
	if _, err := exec.LookPath("ionice"); err == nil {
		wrapped = append(wrapped, "ionice", "-c", "3")
	}
	cmd.Args = append(append(wrapped, bin), args...)
	return true
}

func lowerPriority(pid int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, pid, 19)
}
