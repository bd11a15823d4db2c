package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/Tutortoise/voice-screening-service/analysis"
	"github.com/Tutortoise/voice-screening-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, style string
		enabled      zapcore.Level
		disabled     zapcore.Level
	}{
		{"debug", "terminal", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"info", "json", zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", "logfmt", zapcore.WarnLevel, zapcore.InfoLevel},
		{"", "", zapcore.InfoLevel, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.style, func(t *testing.T) {
			logger, err := newLogger(tt.level, tt.style)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.disabled))
		})
	}

	nop, err := newLogger("info", "noop")
	require.NoError(t, err)
	assert.False(t, nop.Core().Enabled(zapcore.ErrorLevel))

	_, err = newLogger("loud", "json")
	assert.Error(t, err)
	_, err = newLogger("info", "xml")
	assert.Error(t, err)
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	ok := analysis.Outcome{Result: &models.ClassificationResult{
		Prediction:  models.LabelHealthy,
		Label:       1,
		Probability: models.Calibrated(0.9),
	}}
	require.NoError(t, printOutcome(&buf, ok))

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, models.LabelHealthy, resp.Prediction)
	assert.Equal(t, 0.9, resp.Probability)

	buf.Reset()
	failed := analysis.Outcome{Failure: &analysis.Failure{Kind: analysis.KindExtractionError, Message: "silent signal"}}
	err := printOutcome(&buf, failed)
	require.Error(t, err)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &errResp))
	assert.Equal(t, "silent signal", errResp.Error)
	assert.Equal(t, "ExtractionError", errResp.Code)
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "analyze", "spectrogram"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
