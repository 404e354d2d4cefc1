package compose

import (
	"time"

	"jalert/service/filter"

	"go.uber.org/zap/zapcore"
)

const (
	ModeNotify    = "notify"
	ModeFile      = "file"
	ModePostgres  = "postgres"
	ModeWebsocket = "websocket"

	DefaultSourceExecPath = "journalctl"
	DefaultSourceParam    = "--follow --output=json --all --boot --lines=all"
	DefaultSourceBuffer   = 64
	DefaultExporterBuffer = 16
	DefaultExporterName   = "desktop"
)

type ExporterMode []string

var AvailableExporterMode ExporterMode = ExporterMode{
	ModeNotify,
	ModeFile,
	ModePostgres,
	ModeWebsocket,
}

func (em ExporterMode) IsValid(mode string) bool {
	for _, m := range em {
		if m == mode {
			return true
		}
	}
	return false
}

type RulesWrapper struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

type SourceWrapper struct {
	ExecPath string `yaml:"exec_path"`
	Param    string `yaml:"param"`
	Buffer   uint   `yaml:"buffer"`
}

type ExporterWrapper struct {
	Mode        string `yaml:"mode"`
	Destination string `yaml:"destination"`
	Table       string `yaml:"table"`
	Timeout     int    `yaml:"timeout"`
	Buffer      uint   `yaml:"buffer"`
}

type MetricsWrapper struct {
	Listen string `yaml:"listen"`
}

type ComposeWrapper struct {
	Rules     RulesWrapper               `yaml:"rules"`
	Source    SourceWrapper              `yaml:"source"`
	Exporters map[string]ExporterWrapper `yaml:"exporters"`
	Metrics   MetricsWrapper             `yaml:"metrics"`
	LogPath   string                     `yaml:"log_path"`
	LogLevel  string                     `yaml:"log_level"`
}

type Compose struct {
	Rules     *RulesInfo
	Source    *SourceInfo
	Exporters map[string]*ExporterInfo
	Metrics   *MetricsInfo
	LogPath   string
	LogLevel  zapcore.Level
}

type RulesInfo struct {
	Path   string
	Format filter.Format
}

type SourceInfo struct {
	ExecPath string
	Param    []string
	Buffer   uint
}

type ExporterInfo struct {
	Name        string
	Mode        string
	Destination string
	Table       string
	Timeout     time.Duration
	Buffer      uint
}

type MetricsInfo struct {
	Listen string
}
