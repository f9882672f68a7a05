package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := NewWithWriter(&bytes.Buffer{}, tt.level, false).GetLevel(); got != tt.want {
			t.Errorf("level %q = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewWithWriter_JSONAndPretty(t *testing.T) {
	var jsonOut bytes.Buffer
	jsonLogger := NewWithWriter(&jsonOut, "info", false)
	jsonLogger.Info().Str("user", "u1").Msg("captured user name")
	if !strings.HasPrefix(jsonOut.String(), "{") || !strings.Contains(jsonOut.String(), `"user":"u1"`) {
		t.Errorf("json output = %s", jsonOut.String())
	}

	var prettyOut bytes.Buffer
	prettyLogger := NewWithWriter(&prettyOut, "info", true)
	prettyLogger.Info().Msg("starting")
	if strings.HasPrefix(prettyOut.String(), "{") || !strings.Contains(prettyOut.String(), "starting") {
		t.Errorf("pretty output = %s", prettyOut.String())
	}
}

func TestModule(t *testing.T) {
	var out bytes.Buffer
	Module(NewWithWriter(&out, "debug", false), "Client").Warnf("stream error %d", 515)
	if !strings.Contains(out.String(), `"module":"Client"`) || !strings.Contains(out.String(), "stream error 515") {
		t.Errorf("output = %s", out.String())
	}
}
