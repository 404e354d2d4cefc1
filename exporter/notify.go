package exporter

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	jerror "jalert/error"
	jlogger "jalert/logger"
	"jalert/service/model"
)

const (
	DefaultNotifyCommand = "notify-send"
	// summaryLines keeps notifications readable, coredumps have lots of
	// lines.
	summaryLines  = 3
	notifyTimeout = 10 * time.Second
)

type notifyExporter struct {
	*baseExporter
	argv    []string
	timeout time.Duration
}

// NewNotifyExporter shows every alert as a critical desktop notification.
// command is the notify-send compatible program with any leading
// arguments; "" means notify-send from PATH.
func NewNotifyExporter(name string, maxSize uint, command string, timeout time.Duration, logger jlogger.JalertLogger) (Exporter, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		argv = []string{DefaultNotifyCommand}
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, jerror.JalertPipelineError{
			Code:   jerror.ErrExporterCreate,
			Origin: err,
			Msg:    fmt.Sprintf("error while construct new exporter[%s]", name),
		}
	}
	if timeout <= 0 {
		timeout = notifyTimeout
	}
	newNE := &notifyExporter{argv: argv, timeout: timeout}
	newNE.baseExporter = newBaseExporter(name, maxSize, logger, newNE.notify, nil)
	return newNE, nil
}

func (ne *notifyExporter) notify(alert *model.Alert) error {
	ctx, cancel := context.WithTimeout(context.Background(), ne.timeout)
	defer cancel()

	args := append([]string{}, ne.argv[1:]...)
	args = append(args,
		"--app-name="+alert.Identifier,
		"--urgency=critical",
		"--",
		alert.Summary(summaryLines),
	)
	out, err := exec.CommandContext(ctx, ne.argv[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", ne.argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
