package sensorPipe_test

import (
	"testing"

	"jalert/sensorPipe"
)

func TestRunWaitSuccess(t *testing.T) {
	prom, err := sensorPipe.Run(nil, nil, "/bin/sh", "-c", "exit 0")
	if err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if err := prom.Wait(); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestRunWaitFailure(t *testing.T) {
	prom, err := sensorPipe.Run(nil, nil, "/bin/sh", "-c", "exit 7")
	if err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if err := prom.Wait(); err == nil {
		t.Errorf("Wait() = nil, want not nil")
	}
}

func TestRunCancel(t *testing.T) {
	prom, err := sensorPipe.Run(nil, nil, "/bin/sh", "-c", "sleep 1000")
	if err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if err := prom.Cancel(); err != nil {
		t.Fatalf("Cancel() = %v, want nil", err)
	}
	if err := prom.Wait(); err != nil {
		t.Errorf("Wait() after Cancel() = %v, want nil", err)
	}
	if err := prom.Cancel(); err == nil {
		t.Errorf("second Cancel() = nil, want not nil")
	}
}
