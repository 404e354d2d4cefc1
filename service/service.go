package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"jalert/compose"
	jerror "jalert/error"
	"jalert/exporter"
	jlogger "jalert/logger"
	"jalert/sensorPipe"
	"jalert/service/filter"
	"jalert/service/model"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	sourceName      = "journal"
	shutdownTimeout = 5 * time.Second
)

// # Service
//
// Service follows the journal source, evaluates every entry against the
// rule set and hands an alert to each exporter when an entry matches.
// Entries are evaluated one at a time in the order the source prints them.
type Service interface {
	Start() error
	Stop() error
	Wait() error
	// MetricsAddr is the address the metrics endpoint listens on, empty when disabled.
	MetricsAddr() string
}

type service struct {
	// dependency injection
	logger  jlogger.JalertLogger
	compose *compose.Compose
	// rules
	ruleSet *filter.RuleSet
	// source & sinks
	source    sensorPipe.Pipe[*model.JournalEntry]
	exporters []exporter.Exporter
	// metrics
	metrics       *metrics
	metricsServer *http.Server
	metricsLn     net.Listener
	// thread control
	watchGrp errgroup.Group
	stopOnce sync.Once
	stopErr  error
	// conditional variable
	isStarted int32
}

// NewService loads the rule set and constructs the source and the
// exporters. An invalid rule file is returned as is, before anything runs.
func NewService(comp *compose.Compose, logger jlogger.JalertLogger) (Service, error) {
	var err error

	if comp == nil || comp.Rules == nil || comp.Source == nil {
		return nil, jerror.JalertPipelineError{
			Code:   jerror.ErrServiceCreate,
			Origin: fmt.Errorf("compose is incomplete"),
			Msg:    "error while construct new service",
		}
	}
	svc := new(service)
	svc.logger = logger
	svc.compose = comp
	svc.metrics = newMetrics()

	svc.ruleSet, err = filter.ReadRuleSet(comp.Rules.Path, comp.Rules.Format)
	if err != nil {
		return nil, err
	}
	logger.PrintInfo("rules: %d matchers loaded from %s", len(svc.ruleSet.Matchers), comp.Rules.Path)

	svc.source, err = sensorPipe.NewPipe(sourceName, comp.Source.Buffer, logger, model.ParseJournalEntry)
	if err != nil {
		return nil, jerror.JalertPipelineError{
			Code:   jerror.ErrServiceCreate,
			Origin: err,
			Msg:    "error while construct new service",
		}
	}

	for _, name := range sortedExporterNames(comp.Exporters) {
		exp, err := newExporter(comp.Exporters[name], logger)
		if err != nil {
			svc.releaseExporters()
			return nil, jerror.JalertPipelineError{
				Code:   jerror.ErrServiceCreate,
				Origin: err,
				Msg:    "error while construct new service",
			}
		}
		svc.exporters = append(svc.exporters, exp)
	}
	return svc, nil
}

func newExporter(info *compose.ExporterInfo, logger jlogger.JalertLogger) (exporter.Exporter, error) {
	switch info.Mode {
	case compose.ModeNotify:
		return exporter.NewNotifyExporter(info.Name, info.Buffer, info.Destination, info.Timeout, logger)
	case compose.ModeFile:
		return exporter.NewFileExporter(info.Name, info.Buffer, info.Destination, logger)
	case compose.ModePostgres:
		db, err := exporter.OpenPostgres(info.Destination)
		if err != nil {
			return nil, err
		}
		exp, err := exporter.NewPostgresExporter(info.Name, info.Buffer, db, info.Table, info.Timeout, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		return exp, nil
	case compose.ModeWebsocket:
		return exporter.NewWebsocketExporter(info.Name, info.Buffer, info.Destination, logger)
	}
	return nil, jerror.JalertComposeError{
		Code:   jerror.ErrInvalidExporterMode,
		Origin: fmt.Errorf("exporter %s: unknown mode %q", info.Name, info.Mode),
		Msg:    "error while construct new exporter",
	}
}

func sortedExporterNames(infos map[string]*compose.ExporterInfo) []string {
	return slices.Sorted(maps.Keys(infos))
}

// releaseExporters frees the exporters of a service that never started.
func (s *service) releaseExporters() {
	for _, exp := range s.exporters {
		exp.Start()
		if err := exp.Stop(); err != nil {
			s.logger.PrintError("exporter [%s]: %s", exp.Name(), err.Error())
		}
	}
}

func (s *service) MetricsAddr() string {
	if s.metricsLn == nil {
		return ""
	}
	return s.metricsLn.Addr().String()
}

func (s *service) Start() error {
	var err error

	// prevent duplicated start
	if !atomic.CompareAndSwapInt32(&s.isStarted, 0, 1) {
		return jerror.JalertGeneralError{
			Code:   jerror.InvalidOperationError,
			Origin: fmt.Errorf("service is already started"),
			Msg:    "error while execute service.Start()",
		}
	}
	if s.compose.Metrics != nil && s.compose.Metrics.Listen != "" {
		s.metricsLn, err = net.Listen("tcp", s.compose.Metrics.Listen)
		if err != nil {
			s.metricsLn = nil
			atomic.StoreInt32(&s.isStarted, 0)
			return jerror.JalertGeneralError{
				Code:   jerror.SystemError,
				Origin: err,
				Msg:    "error while execute service.Start()",
			}
		}
		s.metricsServer = &http.Server{
			Handler:           s.metrics.handler(),
			ReadHeaderTimeout: shutdownTimeout,
		}
		go func() {
			if err := s.metricsServer.Serve(s.metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.PrintError("metrics server: %s", err.Error())
			}
		}()
		s.logger.PrintInfo("metrics: listening on %s", s.metricsLn.Addr())
	}

	for _, exp := range s.exporters {
		exp.Start()
	}
	err = s.source.Start(s.compose.Source.ExecPath, s.compose.Source.Param...)
	if err != nil {
		if err := s.shutdownMetrics(); err != nil {
			s.logger.PrintError("metrics server: %s", err.Error())
		}
		for _, exp := range s.exporters {
			if err := exp.Stop(); err != nil {
				s.logger.PrintError("exporter [%s]: %s", exp.Name(), err.Error())
			}
		}
		return err
	}
	s.watchGrp.Go(s.watchThread)
	return nil
}

// Wait blocks until the source ends, either by itself or through Stop.
func (s *service) Wait() error {
	if atomic.LoadInt32(&s.isStarted) == 0 {
		return jerror.JalertGeneralError{
			Code:   jerror.InvalidOperationError,
			Origin: fmt.Errorf("service is not started"),
			Msg:    "error while execute service.Wait()",
		}
	}
	return s.watchGrp.Wait()
}

// Stop ends the source, lets the watch loop finish and then drains every
// exporter. It may be called more than once and always returns the first
// result.
func (s *service) Stop() error {
	if atomic.LoadInt32(&s.isStarted) == 0 {
		return jerror.JalertGeneralError{
			Code:   jerror.InvalidOperationError,
			Origin: fmt.Errorf("service is not started"),
			Msg:    "error while execute service.Stop()",
		}
	}
	s.stopOnce.Do(func() {
		var errs []error

		if err := s.source.Stop(); err != nil {
			errs = append(errs, err)
		}
		// the watch loop is the only sender to the exporters
		s.watchGrp.Wait()
		for _, exp := range s.exporters {
			if err := exp.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.shutdownMetrics(); err != nil {
			errs = append(errs, err)
		}
		s.logger.PrintInfo("service is stopped")
		if len(errs) > 0 {
			s.stopErr = jerror.JalertGeneralError{
				Code:   jerror.SystemError,
				Origin: errors.Join(errs...),
				Msg:    "error while execute service.Stop()",
			}
		}
	})
	return s.stopErr
}

func (s *service) shutdownMetrics() error {
	if s.metricsServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.metricsServer.Shutdown(ctx)
}

func (s *service) watchThread() error {
	s.logger.PrintInfo("watch thread is started")
	for entry := range s.source.LogChannel() {
		s.process(entry)
	}
	s.logger.PrintInfo("watch thread is closed")
	return s.source.Wait()
}

// process evaluates one entry and raises an alert when it matches. A field
// that cannot be read skips the entry and nothing else.
func (s *service) process(entry *model.JournalEntry) {
	s.metrics.records.Inc()

	cache := filter.NewFieldCache()
	timer := prometheus.NewTimer(s.metrics.evaluation)
	matched, err := s.ruleSet.Operation(entry, cache)
	timer.ObserveDuration()
	if err != nil {
		s.metrics.fetchErrors.Inc()
		s.logger.PrintError("entry %s is skipped: %s", entry.Cursor(), err.Error())
		return
	}
	if !matched {
		return
	}

	// fields already read by the rules come from the cache
	identifier, _, err := cache.Fetch(entry, model.FieldSyslogIdentifier)
	if err != nil {
		s.metrics.fetchErrors.Inc()
		s.logger.PrintError("entry %s is skipped: %s", entry.Cursor(), err.Error())
		return
	}
	message, present, err := cache.Fetch(entry, model.FieldMessage)
	if err != nil {
		s.metrics.fetchErrors.Inc()
		s.logger.PrintError("entry %s is skipped: %s", entry.Cursor(), err.Error())
		return
	}
	if !present {
		return
	}

	alert := model.NewAlert(identifier, message, entry.Cursor(), entry.Time())
	s.metrics.alerts.Inc()
	s.logger.Logger().Info("alert",
		zap.String("identifier", alert.Identifier),
		zap.String("cursor", alert.Cursor),
		zap.String("summary", alert.Summary(1)),
	)
	for _, exp := range s.exporters {
		select {
		case exp.AlertChannel() <- alert:
		default:
			s.metrics.dropped.WithLabelValues(exp.Name()).Inc()
			s.logger.PrintError("exporter [%s] is busy, alert %s is dropped", exp.Name(), entry.Cursor())
		}
	}
}
