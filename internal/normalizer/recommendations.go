package normalizer

import "go-radiology-reporter/pkg/models"

type recommendationRecord interface {
	toRecommendation(t Tables, d Defaults) models.Recommendation
	legacy() bool
}

// legacyRecommendation is the action/urgency/guideline generation.
type legacyRecommendation struct {
	action    any
	urgency   any
	guideline any
}

// currentRecommendation is the priority/text/rationale generation.
type currentRecommendation struct {
	priority  any
	text      any
	rationale any
}

// detectRecommendation: legacy records carry action and no priority.
func detectRecommendation(raw map[string]any) recommendationRecord {
	if has(raw, "action") && !has(raw, "priority") {
		return legacyRecommendation{
			action:    raw["action"],
			urgency:   raw["urgency"],
			guideline: raw["guideline"],
		}
	}
	return currentRecommendation{
		priority:  raw["priority"],
		text:      raw["text"],
		rationale: raw["rationale"],
	}
}

func (r legacyRecommendation) legacy() bool { return true }

func (r legacyRecommendation) toRecommendation(t Tables, d Defaults) models.Recommendation {
	priority := d.Priority
	if p, ok := t.Priority(coerceString(r.urgency, "")); ok {
		priority = p
	}
	return models.Recommendation{
		Priority:  priority,
		Text:      coerceString(r.action, ""),
		Rationale: coerceString(r.guideline, ""),
	}
}

func (r currentRecommendation) legacy() bool { return false }

func (r currentRecommendation) toRecommendation(_ Tables, d Defaults) models.Recommendation {
	return models.Recommendation{
		Priority:  coerceEnum(r.priority, models.ParsePriority, d.Priority),
		Text:      coerceString(r.text, ""),
		Rationale: coerceString(r.rationale, ""),
	}
}
