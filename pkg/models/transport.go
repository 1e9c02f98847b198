package models

// AnalysisRequest is the inbound "analyze image" request.
type AnalysisRequest struct {
	ImageBase64     string `json:"imageBase64"`
	ImageName       string `json:"imageName,omitempty"`
	Modality        string `json:"modality,omitempty"`
	BodyPart        string `json:"bodyPart,omitempty"`
	ClinicalContext string `json:"clinicalContext,omitempty"`

	// ImageBlobURL references an image in blob storage instead of inline data.
	ImageBlobURL string `json:"imageBlobUrl,omitempty"`
}

// UpstreamRequest is the body POSTed to the analysis workflow.
// Every field is always sent.
type UpstreamRequest struct {
	ImageBase64     string `json:"imageBase64"`
	ImageName       string `json:"imageName"`
	Modality        string `json:"modality"`
	BodyPart        string `json:"bodyPart"`
	ClinicalContext string `json:"clinicalContext"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// Option is a selectable value offered to clients.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionsResponse lists the accepted modalities and body parts.
type OptionsResponse struct {
	Modalities []Option `json:"modalities"`
	BodyParts  []Option `json:"bodyParts"`
}
