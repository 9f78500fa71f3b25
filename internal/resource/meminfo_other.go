//go:build !linux

package resource

import "runtime"

// processRSS approximates resident memory with the Go runtime's
// OS-reserved byte count on platforms without procfs. Coarser than a
// true RSS reading, but the admission check is advisory either way.
func processRSS() (int64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.Sys), nil
}

// TotalSystemMemoryMB returns 0 on platforms where total RAM is not
// queried; the caller falls back to a fixed default budget.
func TotalSystemMemoryMB() int { return 0 }
