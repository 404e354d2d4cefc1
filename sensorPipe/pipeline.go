package sensorPipe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	jerror "jalert/error"
	jlogger "jalert/logger"
)

// maxLineSize is the largest source line the scanner accepts. Journal
// entries with big binary fields are far longer than bufio's default.
const maxLineSize = 4 * 1024 * 1024

// # Pipe
//
// Pipe runs a source process and turns every line it prints into a
// logWrapper on LogChannel. The channel blocks until the consumer is ready
// for the next record and is closed when the source ends or Stop is called.
type Pipe[logWrapper any] interface {
	// Getter & Setter
	Name() string
	LogChannel() <-chan logWrapper
	// methods
	Start(string, ...string) error
	Stop() error
	Wait() error
}

type pipe[logWrapper any] struct {
	sourceName string
	logChannel chan logWrapper
	// stream
	readStream  *os.File
	writeStream *os.File
	scanner     *bufio.Scanner
	// thread control
	ctx    context.Context
	cancel context.CancelFunc
	// wait group for scanner thread print all logs before close
	waitScanner sync.WaitGroup
	wrapFunc    func(string) (logWrapper, error)
	promise     Promise
	// conditional variable
	isStarted int32
	isClosed  int32
	// dependency
	logger jlogger.JalertLogger
}

func NewPipe[logWrapper any](
	sourceName string,
	maxSize uint,
	logger jlogger.JalertLogger,
	wrapFunc func(string) (logWrapper, error)) (Pipe[logWrapper], error) {

	var err error

	// param check
	if sourceName == "" {
		return nil, jerror.JalertPipelineError{
			Code:   jerror.ErrInvalidSourceName,
			Origin: fmt.Errorf("invalid source name %q", sourceName),
			Msg:    "error while construct new pipe",
		}
	}
	newPipe := new(pipe[logWrapper])
	newPipe.sourceName = sourceName
	newPipe.logger = logger

	// open stream
	err = newPipe.openStream(maxSize)
	if err != nil {
		return nil, jerror.JalertPipelineError{
			Code:   jerror.ErrSourceExecute,
			Origin: err,
			Msg:    "error while construct new pipe",
		}
	}
	newPipe.scanner = bufio.NewScanner(newPipe.readStream)
	newPipe.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	newPipe.ctx, newPipe.cancel = context.WithCancel(context.Background())
	newPipe.wrapFunc = wrapFunc
	return newPipe, nil
}

func (p *pipe[logWrapper]) openStream(maxSize uint) (err error) {
	// init pipeline
	if maxSize == 0 {
		p.logChannel = make(chan logWrapper)
	} else {
		p.logChannel = make(chan logWrapper, maxSize)
	}

	// init stream
	p.readStream, p.writeStream, err = os.Pipe()
	if err != nil {
		p.logger.PrintError("error while create pipe %s", err.Error())
		return err
	}
	return nil
}

/****************************************************
* Getter & Setter
****************************************************/

func (p *pipe[logWrapper]) Name() string {
	return p.sourceName
}

func (p *pipe[logWrapper]) LogChannel() <-chan logWrapper {
	return p.logChannel
}

/****************************************************
* Pipeline methods
****************************************************/

func (p *pipe[logWrapper]) Start(arg0 string, arg1 ...string) error {
	// prevent duplicated start
	if !atomic.CompareAndSwapInt32(&p.isStarted, 0, 1) {
		return jerror.JalertGeneralError{
			Code:   jerror.InvalidOperationError,
			Origin: fmt.Errorf("pipe is already started"),
			Msg:    fmt.Sprintf("error while execute pipe[%s].Start()", p.sourceName),
		}
	}
	promise, err := Run(nil, p.writeStream, arg0, arg1...)
	if err != nil {
		p.writeStream.Close()
		p.readStream.Close()
		close(p.logChannel)
		atomic.StoreInt32(&p.isClosed, 1)
		return jerror.JalertPipelineError{
			Code:   jerror.ErrSourceExecute,
			Origin: err,
			Msg:    fmt.Sprintf("error while execute pipe[%s].Start()", p.sourceName),
		}
	}
	p.promise = promise
	// the child holds its own copy, closing ours lets the scanner see EOF
	// once the source exits
	p.writeStream.Close()
	p.logger.PrintInfo("pipe [%s]: source %s %v is started", p.sourceName, arg0, arg1)

	p.waitScanner.Add(1)
	go p.scannerThread()
	return nil
}

func (p *pipe[logWrapper]) Stop() error {
	// prevent Call Stop() before Start()
	if atomic.LoadInt32(&p.isStarted) == 0 || p.promise == nil {
		return jerror.JalertGeneralError{
			Code:   jerror.InvalidOperationError,
			Origin: fmt.Errorf("pipe is not started"),
			Msg:    fmt.Sprintf("error while execute pipe[%s].Stop()", p.sourceName),
		}
	}
	// prevent double close
	if !atomic.CompareAndSwapInt32(&p.isClosed, 0, 1) {
		return jerror.JalertGeneralError{
			Code:   jerror.InvalidOperationError,
			Origin: fmt.Errorf("pipe is already closed"),
			Msg:    fmt.Sprintf("error while execute pipe[%s].Stop()", p.sourceName),
		}
	}
	// unblock the scanner if nobody reads the channel anymore
	p.cancel()
	err := p.promise.Cancel()
	if err != nil {
		return jerror.JalertPipelineError{
			Code:   jerror.ErrSourcePanic,
			Origin: err,
			Msg:    fmt.Sprintf("error while execute pipe[%s].Stop()", p.sourceName),
		}
	}
	// wait for scanner thread to Flush
	p.waitScanner.Wait()
	err = p.readStream.Close()
	if err != nil {
		return jerror.JalertPipelineError{
			Code:   jerror.ErrSourcePanic,
			Origin: err,
			Msg:    fmt.Sprintf("error while execute pipe[%s].Stop()", p.sourceName),
		}
	}
	p.logger.PrintInfo("pipe [%s]: source is stopped", p.sourceName)
	return nil
}

// Wait blocks until the source process exits and returns its exit error.
func (p *pipe[logWrapper]) Wait() error {
	if p.promise == nil {
		return jerror.JalertGeneralError{
			Code:   jerror.InvalidOperationError,
			Origin: fmt.Errorf("pipe is not started"),
			Msg:    fmt.Sprintf("error while execute pipe[%s].Wait()", p.sourceName),
		}
	}
	return p.promise.Wait()
}

func (p *pipe[logWrapper]) scannerThread() {
	var (
		log logWrapper
		err error
	)

	defer p.waitScanner.Done()
	defer close(p.logChannel)

	p.logger.PrintInfo("pipe [%s]: scanner thread is started", p.sourceName)
	for p.scanner.Scan() {
		log, err = p.wrapFunc(p.scanner.Text())
		if err != nil {
			p.logger.PrintError("pipe [%s] source: error while wrap log. %s", p.sourceName, err.Error())
			continue
		}
		// send log to consumer
		select {
		case p.logChannel <- log:
		case <-p.ctx.Done():
			return
		}
	}
	if err := p.scanner.Err(); err != nil {
		p.logger.PrintError("pipe [%s] source: error while read from source. %s", p.sourceName, err.Error())
	}
	p.logger.PrintInfo("pipe [%s]: scanner thread is closed", p.sourceName)
}
