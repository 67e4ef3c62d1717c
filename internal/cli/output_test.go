package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatterJSON(t *testing.T) {
	tests := []struct {
		name       string
		write      func(*OutputFormatter) error
		wantStatus string
		wantCode   string
	}{
		{
			name:       "success",
			write:      func(f *OutputFormatter) error { return f.Success(map[string]string{"calls": "2"}) },
			wantStatus: "ok",
		},
		{
			name:       "error",
			write:      func(f *OutputFormatter) error { return f.Error(ErrCodeBuildFailed, "batch build failed", nil) },
			wantStatus: "error",
			wantCode:   ErrCodeBuildFailed,
		},
		{
			name: "error_with_details",
			write: func(f *OutputFormatter) error {
				return f.Error(ErrCodeSchema, "expected operand", map[string]string{"file": "batch.cue", "line": "42"})
			},
			wantStatus: "error",
			wantCode:   ErrCodeSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: FormatJSON, Writer: buf}
			require.True(t, formatter.JSON())
			require.NoError(t, tt.write(formatter))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			if tt.wantCode == "" {
				assert.Nil(t, resp.Error)
				assert.NotNil(t, resp.Data)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestOutputFormatterJSONDoesNotEscapeHTML(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: FormatJSON, Writer: buf}
	require.NoError(t, formatter.Success("a<b>&c"))
	assert.Contains(t, buf.String(), "a<b>&c")
}

func TestOutputFormatterText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: FormatText, Writer: buf}
	assert.False(t, formatter.JSON())

	require.NoError(t, formatter.Success("3 call(s) built"))
	require.NoError(t, formatter.Error(ErrCodeBuildFailed, "batch build failed", map[string]string{"file": "batch.cue"}))

	out := buf.String()
	assert.Contains(t, out, "3 call(s) built")
	assert.Contains(t, out, "Error ["+ErrCodeBuildFailed+"]: batch build failed")
	assert.NotContains(t, out, "Details:")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error(ErrCodeBuildFailed, "batch build failed", map[string]string{"file": "batch.cue"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Loaded %s", "batch.cue")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Loaded batch.cue")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad file")))

	wrapped := fmt.Errorf("send: %w", WrapExitError(ExitFailure, "E204", errors.New("1 failed")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "E204: 1 failed", errors.Unwrap(wrapped).Error())
}

func TestFormatterFail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: FormatJSON, Writer: buf}

	err := formatter.fail(ExitCommandError, ErrCodeSchema, "batch has no calls", nil)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E004")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeSchema, resp.Error.Code)
}
