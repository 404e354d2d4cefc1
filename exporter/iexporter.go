package exporter

import (
	"fmt"
	"sync"
	"sync/atomic"

	jerror "jalert/error"
	jlogger "jalert/logger"
	"jalert/service/model"
)

// Exporter delivers alerts. Senders hand alerts to AlertChannel and never
// wait for the delivery itself.
type Exporter interface {
	// Getter & Setter
	Name() string
	AlertChannel() chan<- *model.Alert
	// methods
	Start()
	Stop() error
}

// baseExporter owns the channel and the delivery thread shared by every
// exporter. deliver runs on that thread only.
type baseExporter struct {
	// dependency injection
	logger jlogger.JalertLogger
	// fields
	exporterName string
	// stream
	alertChannel chan *model.Alert
	// thread control
	waitGrp sync.WaitGroup
	deliver func(*model.Alert) error
	release func() error
	// conditional variable
	isClosed  int32
	isStarted int32
}

func newBaseExporter(name string, maxSize uint, logger jlogger.JalertLogger,
	deliver func(*model.Alert) error, release func() error) *baseExporter {

	be := new(baseExporter)
	be.exporterName = name
	be.logger = logger
	be.deliver = deliver
	be.release = release
	if maxSize == 0 {
		be.alertChannel = make(chan *model.Alert)
	} else {
		be.alertChannel = make(chan *model.Alert, maxSize)
	}
	return be
}

/************************************************************
* Getter & Setter
************************************************************/

func (be *baseExporter) Name() string {
	return be.exporterName
}

func (be *baseExporter) AlertChannel() chan<- *model.Alert {
	return be.alertChannel
}

/************************************************************
* Methods
************************************************************/

func (be *baseExporter) Start() {
	if !atomic.CompareAndSwapInt32(&be.isStarted, 0, 1) {
		return
	}
	be.waitGrp.Add(1)
	go be.exportThread()
}

// Stop delivers what is already queued, then releases the exporter.
// Nothing may be sent to AlertChannel afterwards.
func (be *baseExporter) Stop() error {
	// prevent call Stop() before Start()
	if atomic.LoadInt32(&be.isStarted) <= 0 {
		return jerror.JalertGeneralError{
			Code:   jerror.InvalidOperationError,
			Origin: fmt.Errorf("exporter is not started"),
			Msg:    fmt.Sprintf("error while execute exporter[%s].Stop()", be.exporterName),
		}
	}
	// prevent double close
	if !atomic.CompareAndSwapInt32(&be.isClosed, 0, 1) {
		return jerror.JalertGeneralError{
			Code:   jerror.InvalidOperationError,
			Origin: fmt.Errorf("exporter is already closed"),
			Msg:    fmt.Sprintf("error while execute exporter[%s].Stop()", be.exporterName),
		}
	}
	close(be.alertChannel)
	be.waitGrp.Wait()
	if be.release == nil {
		return nil
	}
	if err := be.release(); err != nil {
		return jerror.JalertGeneralError{
			Code:   jerror.SystemError,
			Origin: err,
			Msg:    fmt.Sprintf("error while release exporter[%s]", be.exporterName),
		}
	}
	return nil
}

func (be *baseExporter) exportThread() {
	defer be.waitGrp.Done()

	for alert := range be.alertChannel {
		// delivery failures are logged, the sender is never told
		if err := be.deliver(alert); err != nil {
			be.logger.PrintError("exporter [%s]: error while deliver alert %s", be.exporterName, err.Error())
		}
	}
}
