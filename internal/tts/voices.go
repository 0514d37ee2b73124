package tts

// Voice describes a selectable narration voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// Catalog returns the voices exposed by the /api/voices endpoint.
func Catalog() []Voice {
	return []Voice{
		{ID: "af_heart", Name: "Affectionate Heart", Language: "English"},
		{ID: "af_cane", Name: "Affectionate Cane", Language: "English"},
		{ID: "af_iris", Name: "Affectionate Iris", Language: "English"},
		{ID: "pe_leaf", Name: "Peaceful Leaf", Language: "English"},
		{ID: "pe_snow", Name: "Peaceful Snow", Language: "English"},
		{ID: "pe_vine", Name: "Peaceful Vine", Language: "English"},
	}
}
