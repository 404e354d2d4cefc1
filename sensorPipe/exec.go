package sensorPipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	jerror "jalert/error"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// killTimeout bounds how long Cancel waits for the killed process to be
// reaped.
const killTimeout = 5 * time.Second

type Promise interface {
	Wait() error
	Cancel() error
}

type promise struct {
	ctx    context.Context
	cancel context.CancelFunc
	cmd    *exec.Cmd
	// closed once the process is reaped, waitErr is valid afterwards
	exited    chan struct{}
	waitErr   error
	cancelled int32
}

// Run starts arg0 in its own process group with stdout connected to
// outStream. The process is reaped in the background; Wait blocks until
// then.
func Run(inStream *os.File, outStream *os.File, arg0 string, args ...string) (Promise, error) {
	prom := new(promise)
	prom.ctx, prom.cancel = context.WithCancel(context.Background())
	prom.exited = make(chan struct{})
	// set the commandline
	prom.cmd = exec.CommandContext(prom.ctx, arg0, args...)
	if inStream != nil {
		prom.cmd.Stdin = inStream
	}
	if outStream != nil {
		prom.cmd.Stdout = outStream
	}
	prom.cmd.Stderr = os.Stderr
	// generate process group
	prom.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err := prom.cmd.Start()
	if err != nil {
		prom.cancel()
		return nil, jerror.JalertGeneralError{
			Code:   jerror.SystemError,
			Origin: err,
			Msg:    fmt.Sprintf("error while execute %s %v promise.Start()", prom.cmd.Path, prom.cmd.Args),
		}
	}
	go func() {
		prom.waitErr = prom.cmd.Wait()
		close(prom.exited)
	}()
	return prom, nil
}

// Wait returns the exit error of the process. A process ended by Cancel
// is not an error.
func (p *promise) Wait() error {
	<-p.exited
	if p.waitErr != nil && atomic.LoadInt32(&p.cancelled) == 0 {
		return jerror.JalertPipelineError{
			Code:   jerror.ErrSourceKilled,
			Origin: p.waitErr,
			Msg:    fmt.Sprintf("error while execute %s %v promise.Wait()", p.cmd.Path, p.cmd.Args),
		}
	}
	return nil
}

func (p *promise) Cancel() error {
	if !atomic.CompareAndSwapInt32(&p.cancelled, 0, 1) {
		return jerror.JalertGeneralError{
			Code:   jerror.InvalidOperationError,
			Msg:    fmt.Sprintf("error while execute %s %v promise.Cancel()", p.cmd.Path, p.cmd.Args),
			Origin: fmt.Errorf("promise is already cancelled"),
		}
	}
	defer p.cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		// kill the whole process group, children of the source included
		err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		select {
		case <-p.exited:
			return nil
		case <-time.After(killTimeout):
			return fmt.Errorf("process %d is not reaped after %v", p.cmd.Process.Pid, killTimeout)
		}
	})
	if err := eg.Wait(); err != nil {
		return jerror.JalertPipelineError{
			Code:   jerror.ErrSourcePanic,
			Origin: err,
			Msg:    fmt.Sprintf("error while execute %s %v promise.Cancel()", p.cmd.Path, p.cmd.Args),
		}
	}
	return nil
}
