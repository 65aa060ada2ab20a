//go:build linux

package proc

import (
	"fmt"
	"os"
	"strings"
)

// pidIsRunning parses /proc/<pid>/stat. The state field follows the comm
// field, which is parenthesized and may itself contain parentheses or
// spaces, so it is located relative to the last ')'.
func pidIsRunning(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	stat := string(data)
	idx := strings.LastIndexByte(stat, ')')
	if idx < 0 || idx+2 >= len(stat) {
		return false
	}
	return stat[idx+2] != 'Z'
}
