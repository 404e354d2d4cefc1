package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jerror "jalert/error"
	"jalert/service/filter"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// # ComposeFile
//
// reads jalert-compose.yml file and constructs a Compose struct.
//
// # Compose struct
//
// - rules: path and format of the rule file.
//
// - source: the command printing journal entries as JSON lines, journalctl by default.
//
// - exporters: alert sinks by name. mode is one of notify, file, postgres or
// websocket. destination is the command, the file, the DSN or the listen address.
//
// - metrics: listen address of the prometheus endpoint, empty to disable.
//
// - log_path: directory of service.log.
//
// - log_level: debug, info, warn or error. info by default.
type ComposeFile interface {
	GetRulesCompose() *RulesInfo
	GetSourceCompose() *SourceInfo
	GetExporterCompose(name string) *ExporterInfo
	GetCompose() *Compose
	String() string
}

type composeFile struct {
	compose *Compose
}

// Getter for Rules
func (c *composeFile) GetRulesCompose() *RulesInfo {
	return c.compose.Rules
}

// Getter for Source
func (c *composeFile) GetSourceCompose() *SourceInfo {
	return c.compose.Source
}

// Getter for Exporter
func (c *composeFile) GetExporterCompose(name string) *ExporterInfo {
	var (
		ret *ExporterInfo
		ok  bool
	)

	if ret, ok = c.compose.Exporters[name]; !ok {
		return nil
	}
	return ret
}

// Getter for Compose
func (c *composeFile) GetCompose() *Compose {
	return c.compose
}

// Stringer for ComposeFile
func (c *composeFile) String() string {
	rulesStr := fmt.Sprintf("compose: \n-------------Rules --------------\n\tpath: %s\n\tformat: %s\n",
		c.compose.Rules.Path,
		c.compose.Rules.Format)
	sourceStr := fmt.Sprintf("-------------Source --------------\n\texec_path: %s\n\tparam: %v\n\tbuffer: %d\n",
		c.compose.Source.ExecPath,
		c.compose.Source.Param,
		c.compose.Source.Buffer)
	exporterStr := "-------------Exporter --------------\n"
	names := make([]string, 0, len(c.compose.Exporters))
	for name := range c.compose.Exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		exporter := c.compose.Exporters[name]
		exporterStr += fmt.Sprintf("%s:\n\tmode: %v\n\tdestination: %v\n\ttimeout: %v\n", name, exporter.Mode, exporter.Destination, exporter.Timeout)
	}
	metricsStr := fmt.Sprintf("-------------Metrics --------------\n\tlisten: %s\n\tlog_path: %s\n\tlog_level: %s",
		c.compose.Metrics.Listen,
		c.compose.LogPath,
		c.compose.LogLevel)
	return rulesStr + sourceStr + exporterStr + metricsStr
}

// DefaultCompose follows the journal of the current boot and shows alerts
// as desktop notifications.
func DefaultCompose(rulesPath string) ComposeFile {
	newComp := new(composeFile)
	newComp.compose, _ = newComp.getCompose(ComposeWrapper{
		Rules: RulesWrapper{Path: rulesPath},
	}, "")
	return newComp
}

func NewComposeFile(composeFilePath string) (ComposeFile, error) {
	var (
		wrapper ComposeWrapper
	)

	newComp := new(composeFile)

	// read config file
	file, err := os.ReadFile(composeFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jerror.JalertGeneralError{
				Code:   jerror.InvalidArgumentError,
				Origin: err,
				Msg:    "error while Construct new composeFile",
			}
		}
		return nil, jerror.JalertGeneralError{
			Code:   jerror.SystemError,
			Origin: err,
			Msg:    "error while Construct new composeFile",
		}
	}

	// parse config file
	err = yaml.Unmarshal(file, &wrapper)
	if err != nil {
		return nil, jerror.JalertComposeError{
			Code:   jerror.ErrInvalidCompose,
			Origin: err,
			Msg:    "error while Construct new composeFile",
		}
	}

	newComp.compose, err = newComp.getCompose(wrapper, filepath.Dir(composeFilePath))
	if err != nil {
		return nil, err
	}
	return newComp, nil
}

// getCompose verifies the wrapper and fills in defaults. Relative file
// paths are resolved against baseDir.
func (c *composeFile) getCompose(wrapper ComposeWrapper, baseDir string) (*Compose, error) {
	var err error

	compose := new(Compose)
	compose.Rules, err = c.getRules(wrapper.Rules, baseDir)
	if err != nil {
		return nil, err
	}
	compose.Source = c.getSource(wrapper.Source)
	compose.Exporters, err = c.getExporters(wrapper.Exporters, baseDir)
	if err != nil {
		return nil, err
	}
	compose.Metrics = &MetricsInfo{Listen: wrapper.Metrics.Listen}
	compose.LogPath = resolve(baseDir, wrapper.LogPath)
	compose.LogLevel = zapcore.InfoLevel
	if wrapper.LogLevel != "" {
		compose.LogLevel, err = zapcore.ParseLevel(wrapper.LogLevel)
		if err != nil {
			return nil, jerror.JalertComposeError{
				Code:   jerror.ErrInvalidCompose,
				Origin: err,
				Msg:    "error in getCompose.",
			}
		}
	}
	return compose, nil
}

func (c *composeFile) getRules(wrapper RulesWrapper, baseDir string) (*RulesInfo, error) {
	format, err := filter.ParseFormat(wrapper.Format)
	if err != nil {
		return nil, jerror.JalertComposeError{
			Code:   jerror.ErrInvalidRuleFormat,
			Origin: err,
			Msg:    "error in getRules.",
		}
	}
	return &RulesInfo{
		Path:   resolve(baseDir, wrapper.Path),
		Format: format,
	}, nil
}

func (c *composeFile) getSource(wrapper SourceWrapper) *SourceInfo {
	source := &SourceInfo{
		ExecPath: wrapper.ExecPath,
		Param:    strings.Fields(wrapper.Param),
		Buffer:   wrapper.Buffer,
	}
	if source.ExecPath == "" {
		source.ExecPath = DefaultSourceExecPath
		if len(source.Param) == 0 {
			source.Param = strings.Fields(DefaultSourceParam)
		}
	}
	if source.Buffer == 0 {
		source.Buffer = DefaultSourceBuffer
	}
	return source
}

// getExporters constructs ExporterInfo from ExporterWrapper & verifies the exporter compose file.
func (c *composeFile) getExporters(wrapperMap map[string]ExporterWrapper, baseDir string) (map[string]*ExporterInfo, error) {
	exporterMap := make(map[string]*ExporterInfo)

	if len(wrapperMap) == 0 {
		wrapperMap = map[string]ExporterWrapper{
			DefaultExporterName: {Mode: ModeNotify},
		}
	}
	for exporterName, exporterObj := range wrapperMap {
		// check mode is valid
		if !AvailableExporterMode.IsValid(exporterObj.Mode) {
			return nil, jerror.JalertComposeError{
				Code:   jerror.ErrInvalidExporterMode,
				Msg:    "error in getExporters.",
				Origin: fmt.Errorf("exporter %s: mode %q is not one of %v", exporterName, exporterObj.Mode, AvailableExporterMode),
			}
		}
		info := &ExporterInfo{
			Name:        exporterName,
			Mode:        exporterObj.Mode,
			Destination: exporterObj.Destination,
			Table:       exporterObj.Table,
			Timeout:     time.Duration(exporterObj.Timeout) * time.Second,
			Buffer:      exporterObj.Buffer,
		}
		switch info.Mode {
		case ModeFile:
			if info.Destination == "" {
				return nil, jerror.JalertComposeError{
					Code:   jerror.ErrMissingDestination,
					Msg:    "error in getExporters.",
					Origin: fmt.Errorf("exporter %s: destination is empty", exporterName),
				}
			}
			info.Destination = resolve(baseDir, info.Destination)
		case ModePostgres, ModeWebsocket:
			if info.Destination == "" {
				return nil, jerror.JalertComposeError{
					Code:   jerror.ErrMissingDestination,
					Msg:    "error in getExporters.",
					Origin: fmt.Errorf("exporter %s: destination is empty", exporterName),
				}
			}
		}
		if info.Buffer == 0 {
			info.Buffer = DefaultExporterBuffer
		}
		exporterMap[exporterName] = info
	}
	return exporterMap, nil
}

func resolve(baseDir, path string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
