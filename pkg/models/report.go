package models

// AnalysisResponse is the envelope returned for a successful analysis.
// It is built once per request and never persisted.
type AnalysisResponse struct {
	Success    bool          `json:"success"`
	Report     MedicalReport `json:"report"`
	Disclaimer string        `json:"disclaimer"`
}

// MedicalReport is the canonical report shape consumed by presentation,
// independent of the upstream schema generation that produced it.
type MedicalReport struct {
	Technique       Technique        `json:"technique"`
	Devices         []Device         `json:"devices"`
	Findings        []Finding        `json:"findings"`
	Impression      []ImpressionItem `json:"impression"`
	Recommendations []Recommendation `json:"recommendations"`
	Safety          Safety           `json:"safety"`

	// Carried by older pipeline generations; empty when not supplied.
	References     []string `json:"references"`
	PatientSummary string   `json:"patient_summary,omitempty"`
}

// Technique describes how the image was acquired and its quality.
type Technique struct {
	View        string           `json:"view"`
	Position    string           `json:"position"`
	Quality     TechniqueQuality `json:"quality"`
	Limitations []string         `json:"limitations"`
}

// TechniqueQuality holds the three quality ratings.
type TechniqueQuality struct {
	Rotation    string `json:"rotation"`
	Inspiration string `json:"inspiration"`
	Exposure    string `json:"exposure"`
}

// Device is a single line, tube or catheter observation.
type Device struct {
	Type       DeviceType   `json:"type"`
	Status     DeviceStatus `json:"status"`
	Details    string       `json:"details"`
	Confidence Confidence   `json:"confidence"`
	Urgency    Urgency      `json:"urgency"`
}

// Finding is a single clinical finding.
type Finding struct {
	System       System     `json:"system"`
	Finding      string     `json:"finding"`
	Location     string     `json:"location"`
	Description  string     `json:"description"`
	Differential []string   `json:"differential"`
	Confidence   Confidence `json:"confidence"`
	Urgency      Urgency    `json:"urgency"`
}

// ImpressionItem is one numbered summary statement.
type ImpressionItem struct {
	Text    string  `json:"text"`
	Urgency Urgency `json:"urgency"`
}

// Recommendation is a follow-up action.
type Recommendation struct {
	Priority  Priority `json:"priority"`
	Text      string   `json:"text"`
	Rationale string   `json:"rationale"`
}

// Safety carries the clinical-safety flags. Both booleans are always true
// in any report produced by this service.
type Safety struct {
	NotADiagnosis             bool   `json:"not_a_diagnosis"`
	RadiologistReviewRequired bool   `json:"radiologist_review_required"`
	ConfidenceSummary         string `json:"confidence_summary"`
}
