//go:build linux

package core

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// apply sets each ceiling on the already-started child via prlimit. Every
// limit is best-effort: a failure is logged and execution proceeds without
// that particular limit.
func (l Limits) apply(pid int, logger *slog.Logger) {
	set := func(resource int, name string, value uint64) {
		if value == 0 {
			return
		}
		rlim := unix.Rlimit{Cur: value, Max: value}
		if err := unix.Prlimit(pid, resource, &rlim, nil); err != nil {
			logger.Warn("failed to apply resource limit", "limit", name, "value", value, "error", err)
		}
	}

	set(unix.RLIMIT_CPU, "cpu_seconds", l.CPUSeconds)
	set(unix.RLIMIT_AS, "address_space_bytes", l.AddressSpaceBytes)
	set(unix.RLIMIT_FSIZE, "output_file_bytes", l.OutputFileBytes)
}
