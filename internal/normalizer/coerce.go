package normalizer

import (
	"encoding/json"
	"strconv"
	"strings"

	"go-radiology-reporter/pkg/models"
)

// DefaultDisclaimer is used when the upstream payload carries none.
const DefaultDisclaimer = "This report was generated by an AI system for research and educational " +
	"purposes only. It is not a medical diagnosis and must be reviewed by a qualified radiologist " +
	"before any clinical decision is made."

// Defaults is the single table of fallback values applied when a field is
// absent, empty or unrecognized.
type Defaults struct {
	Unknown           string
	Location          string
	Confidence        models.Confidence
	System            models.System
	FindingUrgency    models.Urgency
	ImpressionUrgency models.Urgency
	DeviceType        models.DeviceType
	DeviceStatus      models.DeviceStatus
	DeviceUrgency     models.Urgency
	Priority          models.Priority
	ConfidenceSummary string
	Disclaimer        string
}

// DefaultDefaults returns the documented fallback values.
func DefaultDefaults() Defaults {
	return Defaults{
		Unknown:           "unknown",
		Location:          "Not specified",
		Confidence:        models.ConfidenceModerate,
		System:            models.SystemOther,
		FindingUrgency:    models.UrgencyRoutine,
		ImpressionUrgency: models.UrgencyRoutine,
		DeviceType:        models.DeviceOther,
		DeviceStatus:      models.DeviceUncertain,
		DeviceUrgency:     models.UrgencyInformational,
		Priority:          models.PriorityRoutine,
		ConfidenceSummary: "No confidence summary was provided by the analysis pipeline.",
		Disclaimer:        DefaultDisclaimer,
	}
}

// coerceString renders a scalar leaf as trimmed text. Absent, empty and
// non-scalar values yield def.
func coerceString(v any, def string) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		s = x.String()
	case int:
		s = strconv.Itoa(x)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return def
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// coerceEnum parses a leaf with parse, falling back to def.
func coerceEnum[T any](v any, parse func(string) (T, bool), def T) T {
	s := coerceString(v, "")
	if s == "" {
		return def
	}
	if out, ok := parse(s); ok {
		return out
	}
	return def
}

// coerceList returns v as a list, or an empty list.
func coerceList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{}
}

// coerceObject returns v as an object, or nil.
func coerceObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// coerceStrings returns the scalar entries of a list as text, in order.
// Blank and non-scalar entries are dropped.
func coerceStrings(v any) []string {
	list := coerceList(v)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := coerceString(item, ""); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// coerceRecords returns the object entries of a list. Bare strings are
// promoted to an object holding the string under textKey; other entries are
// dropped.
func coerceRecords(v any, textKey string) []map[string]any {
	list := coerceList(v)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		switch x := item.(type) {
		case map[string]any:
			out = append(out, x)
		case string:
			if strings.TrimSpace(x) != "" {
				out = append(out, map[string]any{textKey: x})
			}
		}
	}
	return out
}

// firstOf returns the value of the first key present in m.
func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
