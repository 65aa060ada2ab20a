//go:build darwin

package proc

import (
	"os/exec"
	"strconv"
	"strings"
)

// pidIsRunning shells out to ps since /proc doesn't exist here. An empty
// result means the PID is gone; a state starting with 'Z' is a zombie.
func pidIsRunning(pid int) bool {
	out, err := exec.Command("ps", "-o", "state=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return false
	}
	state := strings.TrimSpace(string(out))
	if state == "" {
		return false
	}
	return !strings.HasPrefix(state, "Z")
}
