// Package normalizer reconciles the report payloads emitted by successive
// generations of the analysis pipeline into models.AnalysisResponse.
//
// Normalization never fails: every field has a documented fallback in
// Defaults, and legacy vocabularies are mapped through Tables. Detection of
// the schema generation is done per record, so a payload mixing legacy and
// current findings is normalized record by record.
package normalizer

import (
	"go-radiology-reporter/pkg/models"
)

// Stats describes what a single Normalize call saw.
type Stats struct {
	Unwrapped              bool
	LegacyFindings         int
	CurrentFindings        int
	LegacyRecommendations  int
	CurrentRecommendations int
	Impression             ImpressionForm
}

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	tables   Tables
	defaults Defaults
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithTables replaces the legacy mapping tables.
func WithTables(t Tables) Option {
	return func(n *Normalizer) { n.tables = t.clone() }
}

// WithDisclaimer overrides the fallback disclaimer text.
func WithDisclaimer(text string) Option {
	return func(n *Normalizer) {
		if text != "" {
			n.defaults.Disclaimer = text
		}
	}
}

// New creates a Normalizer with the default tables and fallbacks.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		tables:   DefaultTables(),
		defaults: DefaultDefaults(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Unwrap reduces an array-wrapped response to its first element.
// An empty array yields an empty object.
func Unwrap(payload any) any {
	if list, ok := payload.([]any); ok {
		if len(list) == 0 {
			return map[string]any{}
		}
		return list[0]
	}
	return payload
}

// IsErrorPassthrough reports whether payload is an upstream pipeline error
// rather than a result: it carries a message key and no report. A null report
// counts as absent. The message is returned for logging.
func IsErrorPassthrough(payload any) (string, bool) {
	obj := coerceObject(Unwrap(payload))
	if obj == nil || !has(obj, "message") || obj["report"] != nil {
		return "", false
	}
	return coerceString(obj["message"], "unknown pipeline error"), true
}

// Normalize maps payload onto the canonical envelope. The input is not
// modified.
func (n *Normalizer) Normalize(payload any) (*models.AnalysisResponse, Stats) {
	var stats Stats
	if _, ok := payload.([]any); ok {
		stats.Unwrapped = true
	}

	envelope := coerceObject(Unwrap(payload))
	if envelope == nil {
		envelope = map[string]any{}
	}
	report := coerceObject(envelope["report"])
	if report == nil {
		report = envelope
	}

	findingRecords := coerceRecords(report["findings"], "finding")
	findings := make([]models.Finding, 0, len(findingRecords))
	for _, raw := range findingRecords {
		rec := detectFinding(raw)
		if rec.legacy() {
			stats.LegacyFindings++
		} else {
			stats.CurrentFindings++
		}
		findings = append(findings, rec.toFinding(n.tables, n.defaults))
	}

	recRecords := coerceRecords(report["recommendations"], "text")
	recommendations := make([]models.Recommendation, 0, len(recRecords))
	for _, raw := range recRecords {
		rec := detectRecommendation(raw)
		if rec.legacy() {
			stats.LegacyRecommendations++
		} else {
			stats.CurrentRecommendations++
		}
		recommendations = append(recommendations, rec.toRecommendation(n.tables, n.defaults))
	}

	items, form := impression(report["impression"], n.defaults)
	stats.Impression = form

	out := &models.AnalysisResponse{
		Success: true,
		Report: models.MedicalReport{
			Technique:       technique(report["technique"], n.defaults),
			Devices:         devices(report["devices"], n.defaults),
			Findings:        findings,
			Impression:      items,
			Recommendations: recommendations,
			Safety:          safety(report["safety"], n.defaults),
			References:      coerceStrings(report["references"]),
			PatientSummary: coerceString(
				firstOf(report, "patient_summary", "patientSummary", "patientFriendlySummary"), ""),
		},
		Disclaimer: coerceString(firstOf(envelope, "disclaimer"),
			coerceString(firstOf(report, "disclaimer"), n.defaults.Disclaimer)),
	}
	return out, stats
}

var standard = New()

// Normalize runs the default Normalizer.
func Normalize(payload any) *models.AnalysisResponse {
	out, _ := standard.Normalize(payload)
	return out
}
