package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestTeeCore(t *testing.T) {

	var out, errOut bytes.Buffer

	log, err := New(Options{Level: "debug", Stdout: &out, Stderr: &errOut})
	require.NoError(t, err)

	log.Debug("dbg")
	log.Info("inf")
	log.Warn("wrn")
	log.Error("err")
	require.NoError(t, log.Sync())

	assert.Contains(t, out.String(), `"msg":"dbg"`)
	assert.Contains(t, out.String(), `"msg":"inf"`)
	assert.NotContains(t, out.String(), "wrn")
	assert.Contains(t, errOut.String(), `"msg":"wrn"`)
	assert.Contains(t, errOut.String(), `"msg":"err"`)
	assert.NotContains(t, errOut.String(), "inf")
}

func TestLevelFilter(t *testing.T) {

	var out, errOut bytes.Buffer

	log, err := New(Options{Level: "warn", Format: "console", Stdout: &out, Stderr: &errOut})
	require.NoError(t, err)

	log.Info("quiet")
	log.Warn("loud")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "loud")
}

func TestParseLevel(t *testing.T) {

	tests := []struct {
		in   string
		want zapcore.Level
		err  bool
	}{
		{"", zapcore.InfoLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tc := range tests {
		l, err := ParseLevel(tc.in)

		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}

		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, l)
	}

	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}
