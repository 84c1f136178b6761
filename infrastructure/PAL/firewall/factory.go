package firewall

import (
	"runtime"

	"ucibridge/application"
	"ucibridge/application/logging"
	"ucibridge/infrastructure/PAL/exec_commander"
)

// Select picks the platform backend. Only Windows has a real one; everywhere
// else (and whenever the feature is off) the no-op stands in.
func Select(enabled bool, logger logging.Logger) application.Firewall {
	if !enabled {
		return NewNoop(logger)
	}
	if runtime.GOOS == "windows" {
		return NewNetsh(exec_commander.NewExecCommander(), logger)
	}
	logger.Warnf("firewall rules enabled but platform is %s, firewall operations will be no-ops", runtime.GOOS)
	return NewNoop(logger)
}
