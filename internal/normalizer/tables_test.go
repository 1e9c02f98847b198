package normalizer

import (
	"os"
	"path/filepath"
	"testing"

	"go-radiology-reporter/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTables_MergesOverDefaults(t *testing.T) {
	tables, err := ParseTables([]byte(`
severity_to_urgency:
  Moderate: urgent
  incidental: routine
urgency_to_priority:
  stat: critical
`))
	require.NoError(t, err)

	u, ok := tables.Urgency("moderate")
	assert.True(t, ok)
	assert.Equal(t, models.UrgencyUrgent, u)

	u, ok = tables.Urgency("incidental")
	assert.True(t, ok)
	assert.Equal(t, models.UrgencyRoutine, u)

	u, ok = tables.Urgency("critical")
	assert.True(t, ok)
	assert.Equal(t, models.UrgencyCritical, u)

	p, ok := tables.Priority("STAT")
	assert.True(t, ok)
	assert.Equal(t, models.PriorityImmediate, p)
}

func TestParseTables_RejectsUnknownTargets(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad urgency", "severity_to_urgency:\n  critical: whenever\n"},
		{"bad priority", "urgency_to_priority:\n  urgent: soonish\n"},
		{"malformed", "severity_to_urgency: [1, 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTables([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseTables_DoesNotTouchDefaults(t *testing.T) {
	_, err := ParseTables([]byte("severity_to_urgency:\n  critical: routine\n"))
	require.NoError(t, err)

	u, _ := DefaultTables().Urgency("critical")
	assert.Equal(t, models.UrgencyCritical, u)
}

func TestLoadTables(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		tables, err := LoadTables("")
		require.NoError(t, err)
		assert.Equal(t, DefaultTables(), tables)
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tables.yaml")
		require.NoError(t, os.WriteFile(path, []byte("severity_to_urgency:\n  minor: informational\n"), 0o600))

		tables, err := LoadTables(path)
		require.NoError(t, err)
		u, ok := tables.Urgency("minor")
		assert.True(t, ok)
		assert.Equal(t, models.UrgencyInformational, u)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTables(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestCoerceString(t *testing.T) {
	tests := []struct {
		in       any
		expected string
	}{
		{"  text  ", "text"},
		{"", "def"},
		{"   ", "def"},
		{nil, "def"},
		{float64(2.5), "2.5"},
		{float64(3), "3"},
		{true, "true"},
		{map[string]any{"a": 1}, "def"},
		{[]any{"a"}, "def"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, coerceString(tt.in, "def"), "input %#v", tt.in)
	}
}

func TestCoerceRecords(t *testing.T) {
	records := coerceRecords([]any{
		map[string]any{"text": "a"},
		"b",
		"   ",
		float64(1),
		nil,
	}, "text")

	assert.Equal(t, []map[string]any{{"text": "a"}, {"text": "b"}}, records)
	assert.Empty(t, coerceRecords("not a list", "text"))
	assert.NotNil(t, coerceRecords(nil, "text"))
}
