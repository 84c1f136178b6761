package exec_commander

import "os/exec"

// ExecCommander executes commands with os/exec, inheriting the parent
// process environment. Arguments are passed verbatim, never through a shell.
type ExecCommander struct{}

func NewExecCommander() Commander {
	return &ExecCommander{}
}

func (c *ExecCommander) CombinedOutput(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}
