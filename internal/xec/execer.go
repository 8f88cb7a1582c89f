package xec

//go:generate mockgen -destination=xectest/mock_execer.go -package=xectest -write_package_comment=false . Execer

import "os/exec"

// Execer starts and waits on processes.
// Tests replace it to fake program runs.
type Execer interface {
	Output(*exec.Cmd) ([]byte, error)
	Run(*exec.Cmd) error
	Start(*exec.Cmd) error
	Wait(*exec.Cmd) error
	Kill(*exec.Cmd) error
}

// DefaultExecer runs real processes.
var DefaultExecer Execer = osExecer{}

type osExecer struct{}

func (osExecer) Output(cmd *exec.Cmd) ([]byte, error) { return cmd.Output() }
func (osExecer) Run(cmd *exec.Cmd) error              { return cmd.Run() }
func (osExecer) Start(cmd *exec.Cmd) error            { return cmd.Start() }
func (osExecer) Wait(cmd *exec.Cmd) error             { return cmd.Wait() }

func (osExecer) Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
