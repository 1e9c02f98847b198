package normalizer

import "go-radiology-reporter/pkg/models"

// findingRecord is one upstream finding in whichever schema generation
// produced it.
type findingRecord interface {
	toFinding(t Tables, d Defaults) models.Finding
	legacy() bool
}

// legacyFinding is the observation/severity generation.
type legacyFinding struct {
	observation  any
	location     any
	severity     any
	evidence     any
	differential any
	confidence   any
}

// currentFinding is the system/urgency generation.
type currentFinding struct {
	system       any
	finding      any
	location     any
	description  any
	differential any
	confidence   any
	urgency      any
}

// detectFinding picks the variant: legacy records carry observation and no system.
func detectFinding(raw map[string]any) findingRecord {
	if has(raw, "observation") && !has(raw, "system") {
		return legacyFinding{
			observation:  raw["observation"],
			location:     raw["anatomicalLocation"],
			severity:     raw["severity"],
			evidence:     raw["evidenceFromKnowledgeBase"],
			differential: raw["differentialDiagnosis"],
			confidence:   raw["confidence"],
		}
	}
	return currentFinding{
		system:       raw["system"],
		finding:      raw["finding"],
		location:     raw["location"],
		description:  raw["description"],
		differential: raw["differential"],
		confidence:   raw["confidence"],
		urgency:      raw["urgency"],
	}
}

func (f legacyFinding) legacy() bool { return true }

func (f legacyFinding) toFinding(t Tables, d Defaults) models.Finding {
	urgency := d.FindingUrgency
	if u, ok := t.Urgency(coerceString(f.severity, "")); ok {
		urgency = u
	}
	return models.Finding{
		System:       d.System,
		Finding:      coerceString(f.observation, ""),
		Location:     coerceString(f.location, d.Location),
		Description:  coerceString(f.evidence, ""),
		Differential: coerceStrings(f.differential),
		Confidence:   coerceEnum(f.confidence, models.ParseConfidence, d.Confidence),
		Urgency:      urgency,
	}
}

func (f currentFinding) legacy() bool { return false }

func (f currentFinding) toFinding(_ Tables, d Defaults) models.Finding {
	return models.Finding{
		System:       coerceEnum(f.system, models.ParseSystem, d.System),
		Finding:      coerceString(f.finding, ""),
		Location:     coerceString(f.location, d.Location),
		Description:  coerceString(f.description, ""),
		Differential: coerceStrings(f.differential),
		Confidence:   coerceEnum(f.confidence, models.ParseConfidence, d.Confidence),
		Urgency:      coerceEnum(f.urgency, models.ParseUrgency, d.FindingUrgency),
	}
}
