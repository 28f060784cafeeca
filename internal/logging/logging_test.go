package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel logrus.Level
		wantErr   bool
	}{
		{name: "defaults", wantLevel: logrus.InfoLevel},
		{name: "debug text", level: "debug", format: "text", wantLevel: logrus.DebugLevel},
		{name: "warn json", level: "warn", format: "JSON", wantLevel: logrus.WarnLevel},
		{name: "bad level", level: "loud", wantErr: true},
		{name: "bad format", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := NewWithOutput(&buf, tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, l.GetLevel())
		})
	}
}

func TestJSONComponentEntry(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithOutput(&buf, "info", "json")
	require.NoError(t, err)

	Component(logrus.NewEntry(l), "walker").Info("walk finished")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "walker", line["component"])
	assert.Equal(t, "walk finished", line["msg"])
}

func TestComponentNilIsNop(t *testing.T) {
	entry := Component(nil, "fetch")
	require.NotNil(t, entry)
	assert.Equal(t, logrus.PanicLevel, entry.Logger.GetLevel())
	entry.Info("dropped")
}
