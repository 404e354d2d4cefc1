package exporter_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jalert/exporter"
	jlogger "jalert/logger"
	"jalert/service/model"
)

var loger = jlogger.NewNopLogger()

func sampleAlert(message string) *model.Alert {
	return model.NewAlert([]byte("sshd"), []byte(message), "s=1;i=2", time.UnixMicro(1741674574000000))
}

func TestFileExporter(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "alerts.jsonl")
	fe, err := exporter.NewFileExporter("archive", 4, dest, loger)
	if err != nil {
		t.Fatalf("NewFileExporter() = %v, want nil", err)
	}
	if fe.Name() != "archive" {
		t.Errorf("Name() = %s, want archive", fe.Name())
	}
	fe.Start()
	fe.AlertChannel() <- sampleAlert("first")
	fe.AlertChannel() <- sampleAlert("second\nline")
	if err := fe.Stop(); err != nil {
		t.Fatalf("Stop() = %v, want nil", err)
	}

	f, err := os.Open(dest)
	if err != nil {
		t.Fatalf("os.Open(%s) = %v, want nil", dest, err)
	}
	defer f.Close()
	var got []model.Alert
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var alert model.Alert
		if err := json.Unmarshal(scanner.Bytes(), &alert); err != nil {
			t.Fatalf("json.Unmarshal(%s) = %v, want nil", scanner.Text(), err)
		}
		got = append(got, alert)
	}
	if len(got) != 2 {
		t.Fatalf("read %d alerts, want 2", len(got))
	}
	if got[0].Message != "first" || got[1].Message != "second\nline" {
		t.Errorf("messages = %q, %q, want first, second\\nline", got[0].Message, got[1].Message)
	}
	if got[0].Identifier != "sshd" || got[0].Cursor != "s=1;i=2" {
		t.Errorf("alert = %+v, want sshd s=1;i=2", got[0])
	}
}

func TestFileExporterEmptyDestination(t *testing.T) {
	if _, err := exporter.NewFileExporter("archive", 0, "", loger); err == nil {
		t.Errorf("NewFileExporter(\"\") = nil, want not nil")
	}
}

func TestExporterStopStates(t *testing.T) {
	fe, err := exporter.NewFileExporter("archive", 0, filepath.Join(t.TempDir(), "a.jsonl"), loger)
	if err != nil {
		t.Fatalf("NewFileExporter() = %v, want nil", err)
	}
	if err := fe.Stop(); err == nil {
		t.Errorf("Stop() before Start() = nil, want not nil")
	}
	fe.Start()
	if err := fe.Stop(); err != nil {
		t.Errorf("Stop() = %v, want nil", err)
	}
	if err := fe.Stop(); err == nil {
		t.Errorf("second Stop() = nil, want not nil")
	}
}

func TestNotifyExporter(t *testing.T) {
	pwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("os.Getwd() = %v, want nil", err)
	}
	out := filepath.Join(t.TempDir(), "notify.out")
	t.Setenv("NOTIFY_OUT", out)

	command := "/bin/sh " + filepath.Join(pwd, "testdata", "fake_notify.sh")
	ne, err := exporter.NewNotifyExporter("desktop", 1, command, 0, loger)
	if err != nil {
		t.Fatalf("NewNotifyExporter() = %v, want nil", err)
	}
	ne.Start()
	ne.AlertChannel() <- sampleAlert("line1\nline2\nline3\nline4")
	if err := ne.Stop(); err != nil {
		t.Fatalf("Stop() = %v, want nil", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("os.ReadFile(%s) = %v, want nil", out, err)
	}
	got := string(data)
	for _, want := range []string{"--app-name=sshd\n", "--urgency=critical\n", "--\nline1\nline2\nline3\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("notify args = %q, want %q", got, want)
		}
	}
	if strings.Contains(got, "line4") {
		t.Errorf("notify args = %q, want at most three lines", got)
	}
}

func TestNotifyExporterFailureIsNotPropagated(t *testing.T) {
	ne, err := exporter.NewNotifyExporter("desktop", 1, "/bin/sh -c false", time.Second, loger)
	if err != nil {
		t.Fatalf("NewNotifyExporter() = %v, want nil", err)
	}
	ne.Start()
	ne.AlertChannel() <- sampleAlert("boom")
	if err := ne.Stop(); err != nil {
		t.Errorf("Stop() = %v, want nil", err)
	}
}

func TestNotifyExporterMissingCommand(t *testing.T) {
	if _, err := exporter.NewNotifyExporter("desktop", 0, "/nonexistent/notify-send", 0, loger); err == nil {
		t.Errorf("NewNotifyExporter(/nonexistent) = nil, want not nil")
	}
}
