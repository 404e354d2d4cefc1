package filter_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jerror "jalert/error"
	"jalert/service/filter"
)

var (
	parser filter.Parser
)

func TestMain(m *testing.M) {
	var err error
	parser, err = filter.NewParser()
	if err != nil {
		panic(err)
	}
	code := m.Run()
	os.Exit(code)
}

func configCode(t *testing.T, err error) jerror.JalertErrConfig {
	t.Helper()
	var configErr jerror.JalertConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("error %v is not a JalertConfigError", err)
	}
	return configErr.Code
}

func TestParseFieldName(t *testing.T) {
	valid := []string{"MESSAGE", "_SYSTEMD_UNIT", "PRIORITY", "COREDUMP_EXE", "A1_2", "0"}
	for _, sample := range valid {
		got, err := filter.ParseFieldName(parser.FieldNameParser(), sample)
		if err != nil {
			t.Errorf("ParseFieldName(%s) = %v, want nil", sample, err)
			continue
		}
		if got != sample {
			t.Errorf("ParseFieldName(%s) = %s, want %s", sample, got, sample)
		}
	}
}

func TestParseFieldNameInvalid(t *testing.T) {
	invalid := []string{"", "foo", "Message", "MESSAGE ", " MESSAGE", "SYSTEMD-UNIT", "UNIT|contains", "ÄRGER", "A\x00B"}
	for _, sample := range invalid {
		_, err := filter.ParseFieldName(parser.FieldNameParser(), sample)
		if err == nil {
			t.Errorf("ParseFieldName(%q) = nil, want not nil", sample)
			continue
		}
		if code := configCode(t, err); code != jerror.ErrFieldName {
			t.Errorf("ParseFieldName(%q) code = %v, want %v", sample, code, jerror.ErrFieldName)
		}
	}
}

func TestParseFieldNameWithInvalidParser(t *testing.T) {
	_, err := filter.ParseFieldName(nil, "MESSAGE")
	if err == nil {
		t.Fatalf("ParseFieldName(nil) = nil, want not nil")
	}
}

func TestReadRuleSetFormats(t *testing.T) {
	configJSON, err := filter.ReadRuleSet(filepath.Join("testdata", "config.json"), filter.FormatAuto)
	if err != nil {
		t.Fatalf("ReadRuleSet(config.json) = %v, want nil", err)
	}
	configTOML, err := filter.ReadRuleSet(filepath.Join("testdata", "config.toml"), filter.FormatAuto)
	if err != nil {
		t.Fatalf("ReadRuleSet(config.toml) = %v, want nil", err)
	}
	configYAML, err := filter.ReadRuleSet(filepath.Join("testdata", "config.yaml"), filter.FormatAuto)
	if err != nil {
		t.Fatalf("ReadRuleSet(config.yaml) = %v, want nil", err)
	}
	if !configJSON.Equal(configTOML) {
		t.Errorf("json and toml rule sets differ")
	}
	if !configJSON.Equal(configYAML) {
		t.Errorf("json and yaml rule sets differ")
	}
	if len(configJSON.Matchers) != 3 {
		t.Fatalf("len(Matchers) = %d, want 3", len(configJSON.Matchers))
	}
	first := configJSON.Matchers[0]
	if len(first.Allow) != 2 || len(first.Allow[0].Deny) != 1 {
		t.Errorf("Matchers[0] shape = %d allow, want 2 allow with 1 deny", len(first.Allow))
	}
}

func TestReadRuleSetExplicitFormat(t *testing.T) {
	// an explicit format never falls back
	_, err := filter.ReadRuleSet(filepath.Join("testdata", "config.toml"), filter.FormatJSON)
	if err == nil {
		t.Fatalf("ReadRuleSet(config.toml, json) = nil, want not nil")
	}
	if code := configCode(t, err); code != jerror.ErrConfigParse {
		t.Errorf("code = %v, want %v", code, jerror.ErrConfigParse)
	}
	rs, err := filter.ReadRuleSet(filepath.Join("testdata", "config.toml"), filter.FormatTOML)
	if err != nil {
		t.Fatalf("ReadRuleSet(config.toml, toml) = %v, want nil", err)
	}
	if len(rs.Matchers) != 3 {
		t.Errorf("len(Matchers) = %d, want 3", len(rs.Matchers))
	}
}

func TestReadRuleSetNotFound(t *testing.T) {
	_, err := filter.ReadRuleSet(filepath.Join("testdata", "notfound"), filter.FormatAuto)
	if err == nil {
		t.Fatalf("ReadRuleSet(notfound) = nil, want not nil")
	}
	if code := configCode(t, err); code != jerror.ErrConfigRead {
		t.Errorf("code = %v, want %v", code, jerror.ErrConfigRead)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadRuleSet(notfound) = %v, want os.ErrNotExist", err)
	}
}

func TestReadRuleSetInvalidFieldTOML(t *testing.T) {
	_, err := filter.ReadRuleSet(filepath.Join("testdata", "invalid_field.toml"), filter.FormatAuto)
	if err == nil {
		t.Fatalf("ReadRuleSet(invalid_field.toml) = nil, want not nil")
	}
	if code := configCode(t, err); code != jerror.ErrFieldName {
		t.Errorf("code = %v, want %v", code, jerror.ErrFieldName)
	}
}

func TestNewRuleSetLowercaseField(t *testing.T) {
	_, err := filter.NewRuleSet([]byte(`{"match": [{"foo": "bar"}]}`), filter.FormatAuto)
	if err == nil {
		t.Fatalf("NewRuleSet(foo) = nil, want not nil")
	}
	// validation errors after a successful JSON parse must not fall back to TOML
	if code := configCode(t, err); code != jerror.ErrFieldName {
		t.Errorf("code = %v, want %v", code, jerror.ErrFieldName)
	}
	if !strings.Contains(err.Error(), `"foo"`) {
		t.Errorf("error %q does not name the key", err.Error())
	}
	if !strings.Contains(err.Error(), "match[0]") {
		t.Errorf("error %q does not name the rule", err.Error())
	}
}

func TestNewRuleSetInvalid(t *testing.T) {
	tests := []struct {
		name   string
		config string
		code   jerror.JalertErrConfig
		naming string
	}{
		{"garbage", `this is { neither`, jerror.ErrConfigParse, ""},
		{"empty field name", `{"match": [{"": "x"}]}`, jerror.ErrFieldName, `""`},
		{"nested field name", `{"match": [{"allow": [{"Unit": "x"}]}]}`, jerror.ErrFieldName, "match[0].allow[0]"},
		{"deny under deny", `{"match": [{"deny": []}]}`, jerror.ErrFieldName, `"deny"`},
		{"allow under allow", `{"match": [{"allow": [{"allow": []}]}]}`, jerror.ErrFieldName, `"allow"`},
		{"invalid pattern", `{"match": [{"MESSAGE": "seg(fault"}]}`, jerror.ErrPattern, "seg(fault"},
		{"deep invalid pattern", `{"match": [{"allow": [{"deny": [{"A": "["}]}]}]}`, jerror.ErrPattern, "match[0].allow[0].deny[0]"},
		{"non string pattern", `{"match": [{"PRIORITY": 3}]}`, jerror.ErrConfigShape, "PRIORITY"},
		{"allow not a list", `{"match": [{"allow": {"UNIT": "x"}}]}`, jerror.ErrConfigShape, `"allow"`},
		{"allow list of strings", `{"match": [{"allow": ["UNIT"]}]}`, jerror.ErrConfigShape, `"allow"`},
		{"null rule", `{"match": [null]}`, jerror.ErrConfigShape, "match[0]"},
	}
	for _, tt := range tests {
		_, err := filter.NewRuleSet([]byte(tt.config), filter.FormatAuto)
		if err == nil {
			t.Errorf("%s: NewRuleSet() = nil, want not nil", tt.name)
			continue
		}
		if code := configCode(t, err); code != tt.code {
			t.Errorf("%s: code = %v, want %v (%v)", tt.name, code, tt.code, err)
		}
		if !strings.Contains(err.Error(), tt.naming) {
			t.Errorf("%s: error %q does not contain %q", tt.name, err.Error(), tt.naming)
		}
	}
}

func TestNewRuleSetEmpty(t *testing.T) {
	for _, config := range []string{`{}`, `{"match": []}`, ``} {
		rs, err := filter.NewRuleSet([]byte(config), filter.FormatAuto)
		if err != nil {
			t.Errorf("NewRuleSet(%q) = %v, want nil", config, err)
			continue
		}
		if len(rs.Matchers) != 0 {
			t.Errorf("NewRuleSet(%q) has %d matchers, want 0", config, len(rs.Matchers))
		}
	}
}

func TestNewRuleSetSortsPatterns(t *testing.T) {
	rs, err := filter.NewRuleSet([]byte(`{"match": [{"UNIT": "a", "MESSAGE": "b", "PRIORITY": "c"}]}`), filter.FormatJSON)
	if err != nil {
		t.Fatalf("NewRuleSet() = %v, want nil", err)
	}
	patterns := rs.Matchers[0].Patterns
	want := []string{"MESSAGE", "PRIORITY", "UNIT"}
	if len(patterns) != len(want) {
		t.Fatalf("len(Patterns) = %d, want %d", len(patterns), len(want))
	}
	for i := range want {
		if patterns[i].Field != want[i] {
			t.Errorf("Patterns[%d].Field = %s, want %s", i, patterns[i].Field, want[i])
		}
	}
}

func TestRuleSetNotEqual(t *testing.T) {
	a, err := filter.NewRuleSet([]byte(`{"match": [{"UNIT": "cron", "allow": [{"MESSAGE": "ok"}]}]}`), filter.FormatJSON)
	if err != nil {
		t.Fatalf("NewRuleSet() = %v, want nil", err)
	}
	others := []string{
		`{"match": [{"UNIT": "cron"}]}`,
		`{"match": [{"UNIT": "cron.", "allow": [{"MESSAGE": "ok"}]}]}`,
		`{"match": [{"UNIT": "cron", "allow": [{"MESSAGE": "ok", "deny": [{}]}]}]}`,
		`{"match": [{"UNIT": "cron", "allow": [{"MESSAGE": "ok"}]}, {}]}`,
	}
	for _, config := range others {
		b, err := filter.NewRuleSet([]byte(config), filter.FormatJSON)
		if err != nil {
			t.Fatalf("NewRuleSet(%s) = %v, want nil", config, err)
		}
		if a.Equal(b) {
			t.Errorf("Equal(%s) = true, want false", config)
		}
	}
}

func TestRuleSetFields(t *testing.T) {
	rs, err := filter.ReadRuleSet(filepath.Join("testdata", "config.json"), filter.FormatAuto)
	if err != nil {
		t.Fatalf("ReadRuleSet(config.json) = %v, want nil", err)
	}
	fields := rs.Fields()
	for _, name := range []string{"PRIORITY", "_SYSTEMD_UNIT", "MESSAGE", "SYSLOG_IDENTIFIER", "COREDUMP_EXE", "COREDUMP_COMM"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("Fields() is missing %s", name)
		}
	}
	if len(fields) != 6 {
		t.Errorf("len(Fields()) = %d, want 6", len(fields))
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []filter.Format{filter.FormatAuto, filter.FormatJSON, filter.FormatTOML, filter.FormatYAML} {
		got, err := filter.ParseFormat(f.String())
		if err != nil || got != f {
			t.Errorf("ParseFormat(%s) = %v, %v, want %v", f, got, err, f)
		}
	}
	if _, err := filter.ParseFormat("xml"); err == nil {
		t.Errorf("ParseFormat(xml) = nil, want not nil")
	}
}

func TestNewPattern(t *testing.T) {
	p, err := filter.NewPattern("MESSAGE", "^seg")
	if err != nil {
		t.Fatalf("NewPattern() = %v, want nil", err)
	}
	if p.Field != "MESSAGE" || p.Regexp.String() != "^seg" {
		t.Errorf("NewPattern() = %s %s, want MESSAGE ^seg", p.Field, p.Regexp)
	}
	if _, err := filter.NewPattern("message", "^seg"); err == nil {
		t.Errorf("NewPattern(message) = nil, want not nil")
	}
	if _, err := filter.NewPattern("MESSAGE", "("); err == nil {
		t.Errorf("NewPattern(MESSAGE, \"(\") = nil, want not nil")
	}
}

// Patterns are UTF-8 regexes: a raw byte cannot be targeted.
func TestPatternRawBytes(t *testing.T) {
	_, err := filter.NewPattern("MESSAGE", `(?-u:\xff)`)
	var configErr jerror.JalertConfigError
	if !errors.As(err, &configErr) || configErr.Code != jerror.ErrPattern {
		t.Errorf("NewPattern((?-u:\\xff)) = %v, want ErrPattern", err)
	}

	p, err := filter.NewPattern("MESSAGE", `^\xff$`)
	if err != nil {
		t.Fatalf("NewPattern(^\\xff$) = %v, want nil", err)
	}
	if p.Regexp.Match([]byte{0xff}) {
		t.Errorf("^\\xff$ matched the raw byte 0xff, want no match")
	}
	if !p.Regexp.Match([]byte("ÿ")) {
		t.Errorf("^\\xff$ did not match U+00FF, want match")
	}
}
