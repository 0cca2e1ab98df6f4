package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateValidConfig(t *testing.T) {
	path := writeConfig(t, testConfig)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "valid: 3 rule(s), mode STRICT")
}

func TestValidateValidConfigJSON(t *testing.T) {
	path := writeConfig(t, testConfig)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, float64(3), data["rules"])
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"unknown semantic type", "rules:\n  - pattern: a\n    type: SSN\n"},
		{"empty pattern", "rules:\n  - pattern: \"\"\n    type: NAME\n"},
		{"bad pattern syntax", "rules:\n  - pattern: \"a[x]\"\n    type: NAME\n"},
		{"date rule without patterns", "rules:\n  - pattern: a\n    type: DATE\n"},
		{"bad mode", "rules:\n  - pattern: a\n    type: NAME\nmode: PARANOID\n"},
		{"bad redact policy", "rules:\n  - pattern: a\n    type: NAME\ntransforms:\n  redact: shred\n"},
		{"multi-char delimiter", "rules:\n  - pattern: a\n    type: NAME\ncsv:\n  delimiter: \"||\"\n"},
		{"not yaml", "{{{\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.config)

			buf := &bytes.Buffer{}
			cmd := NewValidateCommand(&RootOptions{Format: "text"})
			cmd.SetOut(buf)
			cmd.SetArgs([]string{path})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestValidateMissingFile(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/rules.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
