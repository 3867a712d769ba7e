package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLabels(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Labels
	}{
		{
			name:     "one label per line",
			input:    "stop\nyield\nspeed limit 50\n",
			expected: Labels{"stop", "yield", "speed limit 50"},
		},
		{
			name:     "stops at first blank line",
			input:    "stop\nyield\n\nignored\n",
			expected: Labels{"stop", "yield"},
		},
		{
			name:     "windows line endings",
			input:    "stop\r\nyield\r\n",
			expected: Labels{"stop", "yield"},
		},
		{
			name:     "no trailing newline",
			input:    "stop\nyield",
			expected: Labels{"stop", "yield"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels, err := LoadLabels(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, labels)
		})
	}
}

func TestLoadLabelsEmpty(t *testing.T) {
	_, err := LoadLabels(strings.NewReader("\nstop\n"))
	assert.Error(t, err)
}

func TestLoadLabelsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("stop\nyield\n"), 0o600))

	labels, err := LoadLabelsFile(path)
	require.NoError(t, err)
	assert.Equal(t, Labels{"stop", "yield"}, labels)

	_, err = LoadLabelsFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestLabelsLookup(t *testing.T) {
	labels := Labels{"stop", "yield"}

	assert.Equal(t, "yield", labels.Name(1))
	assert.Equal(t, UnknownLabel, labels.Name(2))
	assert.Equal(t, UnknownLabel, labels.Name(-1))
	assert.Equal(t, 0, labels.Index("stop"))
	assert.Equal(t, -1, labels.Index("car"))
}
