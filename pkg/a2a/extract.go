package a2a

import "encoding/json"

// resultShape covers the three result layouts seen from agents: a direct
// message, a task with artifacts and a bare object with parts.
type resultShape struct {
	Kind      string     `json:"kind"`
	Parts     []Part     `json:"parts"`
	Artifacts []Artifact `json:"artifacts"`
}

// Extractor pulls reply text out of a decoded result.
type Extractor func(resultShape) (string, bool)

func firstText(parts []Part) (string, bool) {
	for _, p := range parts {
		if p.Kind == PartKindText {
			return p.Text, true
		}
	}
	return "", false
}

func fromMessage(r resultShape) (string, bool) {
	if r.Kind != "message" {
		return "", false
	}
	return firstText(r.Parts)
}

func fromArtifacts(r resultShape) (string, bool) {
	for _, a := range r.Artifacts {
		if text, ok := firstText(a.Parts); ok {
			return text, true
		}
	}
	return "", false
}

func fromParts(r resultShape) (string, bool) {
	return firstText(r.Parts)
}

// extractors are tried in order; the first hit wins.
var extractors = []Extractor{fromMessage, fromArtifacts, fromParts}

// ExtractText returns the first text part found in a message/send result.
func ExtractText(result json.RawMessage) (string, bool) {
	if len(result) == 0 {
		return "", false
	}
	var shape resultShape
	if err := json.Unmarshal(result, &shape); err != nil {
		return "", false
	}
	for _, ex := range extractors {
		if text, ok := ex(shape); ok {
			return text, true
		}
	}
	return "", false
}
