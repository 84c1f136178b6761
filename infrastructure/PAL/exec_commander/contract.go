package exec_commander

// Commander runs one external command to completion. The firewall backend
// shells out to the platform tool through this seam so tests can script the
// tool's replies instead of mutating real rules.
type Commander interface {
	// CombinedOutput returns the command's merged stdout and stderr, which
	// is where netsh prints both rule listings and error diagnostics.
	CombinedOutput(name string, args ...string) ([]byte, error)
}
