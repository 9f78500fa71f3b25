//go:build linux

package resource

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// processRSS reads the resident set size from /proc/self/statm.
// Field layout: size resident shared text lib data dt, all in pages.
func processRSS() (int64, error) {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0, fmt.Errorf("reading statm: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed statm: %q", string(data))
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing statm resident field: %w", err)
	}
	return pages * int64(os.Getpagesize()), nil
}

// TotalSystemMemoryMB reports total physical RAM, used as the default
// memory budget when none is configured. Returns 0 when the kernel
// query fails; the caller falls back to a fixed default.
func TotalSystemMemoryMB() int {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return int(uint64(info.Totalram) * uint64(info.Unit) / (1 << 20))
}
