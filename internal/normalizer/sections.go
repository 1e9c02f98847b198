package normalizer

import (
	"regexp"
	"strings"

	"go-radiology-reporter/pkg/models"
)

// ImpressionForm records which shape the impression arrived in.
type ImpressionForm string

const (
	ImpressionAbsent ImpressionForm = "absent"
	ImpressionList   ImpressionForm = "list"
	ImpressionText   ImpressionForm = "text"
)

var ordinalPrefix = regexp.MustCompile(`^\d+\.\s+`)

// impression reconciles the list form and the free-text block form.
func impression(v any, d Defaults) ([]models.ImpressionItem, ImpressionForm) {
	switch x := v.(type) {
	case []any:
		items := make([]models.ImpressionItem, 0, len(x))
		for _, entry := range x {
			switch e := entry.(type) {
			case string:
				items = append(items, models.ImpressionItem{
					Text:    strings.TrimSpace(e),
					Urgency: d.ImpressionUrgency,
				})
			case map[string]any:
				items = append(items, models.ImpressionItem{
					Text:    coerceString(e["text"], ""),
					Urgency: coerceEnum(e["urgency"], models.ParseUrgency, d.ImpressionUrgency),
				})
			}
		}
		return items, ImpressionList
	case string:
		lines := strings.Split(x, "\n")
		items := make([]models.ImpressionItem, 0, len(lines))
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			line = strings.TrimSpace(ordinalPrefix.ReplaceAllString(line, ""))
			if line == "" {
				continue
			}
			items = append(items, models.ImpressionItem{Text: line, Urgency: d.ImpressionUrgency})
		}
		return items, ImpressionText
	}
	return []models.ImpressionItem{}, ImpressionAbsent
}

func technique(v any, d Defaults) models.Technique {
	raw := coerceObject(v)
	if raw == nil {
		raw = map[string]any{}
	}
	quality := coerceObject(raw["quality"])
	if quality == nil {
		quality = map[string]any{}
	}
	return models.Technique{
		View:     coerceString(raw["view"], d.Unknown),
		Position: coerceString(raw["position"], d.Unknown),
		Quality: models.TechniqueQuality{
			Rotation:    strings.ToLower(coerceString(quality["rotation"], d.Unknown)),
			Inspiration: strings.ToLower(coerceString(quality["inspiration"], d.Unknown)),
			Exposure:    strings.ToLower(coerceString(quality["exposure"], d.Unknown)),
		},
		Limitations: coerceStrings(raw["limitations"]),
	}
}

func devices(v any, d Defaults) []models.Device {
	records := coerceRecords(v, "details")
	out := make([]models.Device, 0, len(records))
	for _, raw := range records {
		out = append(out, models.Device{
			Type:       coerceEnum(raw["type"], models.ParseDeviceType, d.DeviceType),
			Status:     coerceEnum(raw["status"], models.ParseDeviceStatus, d.DeviceStatus),
			Details:    coerceString(raw["details"], ""),
			Confidence: coerceEnum(raw["confidence"], models.ParseConfidence, d.Confidence),
			Urgency:    coerceEnum(raw["urgency"], models.ParseUrgency, d.DeviceUrgency),
		})
	}
	return out
}

func safety(v any, d Defaults) models.Safety {
	raw := coerceObject(v)
	if raw == nil {
		raw = map[string]any{}
	}
	// Both flags are forced regardless of what upstream sent.
	return models.Safety{
		NotADiagnosis:             true,
		RadiologistReviewRequired: true,
		ConfidenceSummary:         coerceString(firstOf(raw, "confidence_summary", "confidenceSummary"), d.ConfidenceSummary),
	}
}
