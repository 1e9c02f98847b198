package normalizer

import (
	"fmt"
	"os"
	"strings"

	"go-radiology-reporter/pkg/models"

	"gopkg.in/yaml.v3"
)

// Tables maps legacy schema vocabularies onto the canonical enums.
// Keys are matched lowercased and trimmed.
type Tables struct {
	SeverityToUrgency map[string]models.Urgency
	UrgencyToPriority map[string]models.Priority
}

// DefaultTables returns the mappings for the legacy pipeline generation.
func DefaultTables() Tables {
	return Tables{
		SeverityToUrgency: map[string]models.Urgency{
			"critical":    models.UrgencyCritical,
			"significant": models.UrgencyUrgent,
			"incidental":  models.UrgencyInformational,
		},
		UrgencyToPriority: map[string]models.Priority{
			"immediate": models.PriorityImmediate,
			"urgent":    models.PriorityUrgent,
			"routine":   models.PriorityRoutine,
		},
	}
}

// Urgency maps a legacy severity; ok is false when the value is not in the table.
func (t Tables) Urgency(severity string) (models.Urgency, bool) {
	u, ok := t.SeverityToUrgency[strings.ToLower(strings.TrimSpace(severity))]
	return u, ok
}

// Priority maps a legacy recommendation urgency.
func (t Tables) Priority(urgency string) (models.Priority, bool) {
	p, ok := t.UrgencyToPriority[strings.ToLower(strings.TrimSpace(urgency))]
	return p, ok
}

func (t Tables) clone() Tables {
	out := Tables{
		SeverityToUrgency: make(map[string]models.Urgency, len(t.SeverityToUrgency)),
		UrgencyToPriority: make(map[string]models.Priority, len(t.UrgencyToPriority)),
	}
	for k, v := range t.SeverityToUrgency {
		out.SeverityToUrgency[k] = v
	}
	for k, v := range t.UrgencyToPriority {
		out.UrgencyToPriority[k] = v
	}
	return out
}

type tablesFile struct {
	SeverityToUrgency map[string]string `yaml:"severity_to_urgency"`
	UrgencyToPriority map[string]string `yaml:"urgency_to_priority"`
}

// ParseTables reads YAML mapping overrides and merges them over the defaults.
// Unknown target values are rejected so a typo cannot silently downgrade a
// critical finding.
func ParseTables(data []byte) (Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Tables{}, fmt.Errorf("parse mapping tables: %w", err)
	}

	t := DefaultTables().clone()
	for k, v := range f.SeverityToUrgency {
		u, ok := models.ParseUrgency(v)
		if !ok {
			return Tables{}, fmt.Errorf("severity_to_urgency[%s]: unknown urgency %q", k, v)
		}
		t.SeverityToUrgency[strings.ToLower(strings.TrimSpace(k))] = u
	}
	for k, v := range f.UrgencyToPriority {
		p, ok := models.ParsePriority(v)
		if !ok {
			return Tables{}, fmt.Errorf("urgency_to_priority[%s]: unknown priority %q", k, v)
		}
		t.UrgencyToPriority[strings.ToLower(strings.TrimSpace(k))] = p
	}
	return t, nil
}

// LoadTables reads mapping overrides from a YAML file. An empty path yields
// the defaults.
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read mapping tables: %w", err)
	}
	return ParseTables(data)
}
