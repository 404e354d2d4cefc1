package exporter

import (
	"encoding/json"
	"fmt"

	jerror "jalert/error"
	jlogger "jalert/logger"
	"jalert/service/model"

	"gopkg.in/natefinch/lumberjack.v2"
)

type fileExporter struct {
	*baseExporter
	writeStream *lumberjack.Logger
	wrapFunc    func(*model.Alert) ([]byte, error)
}

// NewFileExporter appends one JSON document per alert to destination,
// rotating the file like the service log.
func NewFileExporter(name string, maxSize uint, destination string, logger jlogger.JalertLogger) (Exporter, error) {
	if destination == "" {
		return nil, jerror.JalertPipelineError{
			Code:   jerror.ErrExporterCreate,
			Origin: fmt.Errorf("destination is empty"),
			Msg:    fmt.Sprintf("error while construct new exporter[%s]", name),
		}
	}
	newFE := new(fileExporter)
	newFE.writeStream = &lumberjack.Logger{
		Filename:   destination,
		MaxSize:    64, // M
		MaxBackups: 10,
		MaxAge:     90, // days
		Compress:   true,
	}
	newFE.wrapFunc = func(alert *model.Alert) ([]byte, error) {
		return json.Marshal(alert)
	}
	newFE.baseExporter = newBaseExporter(name, maxSize, logger, newFE.write, newFE.writeStream.Close)
	return newFE, nil
}

func (fe *fileExporter) write(alert *model.Alert) error {
	out, err := fe.wrapFunc(alert)
	if err != nil {
		return err
	}
	// append newline
	out = append(out, '\n')
	_, err = fe.writeStream.Write(out)
	return err
}
