package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInitSetsDefaultLevel(t *testing.T) {
	log := Init(false)
	defer log.Sync()

	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug to be disabled by default")
	}
	if !log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info to be enabled by default")
	}

	log = Init(true)
	defer log.Sync()
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug to be enabled with verbose")
	}
}
