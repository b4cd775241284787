package ffmpeglib

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

func configureCmd(cmd *exec.Cmd, bin string, args []string) bool {
	nicePath, err := exec.LookPath("nice")
	if err != nil {
		return false
	}
	cmd.Path = nicePath
	cmd.Args = append([]string{"nice", "-n", "19", bin}, args...)
	return true
}

func lowerPriority(pid int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, pid, 19)
}
