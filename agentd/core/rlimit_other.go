//go:build !linux

package core

import "log/slog"

func (l Limits) apply(pid int, logger *slog.Logger) {
	logger.Warn("resource limits unsupported on this platform")
}
