package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// TechnicalSignals is the typed view of a page's on-page audit data.
// The persisted representation is an open JSONB map so that fields written
// by earlier runs (or corrected by hand) survive re-audits; conversion in
// both directions goes through mapstructure.
type TechnicalSignals struct {
	StatusCode        int      `mapstructure:"statusCode" json:"statusCode"`
	LoadTimeMs        int64    `mapstructure:"loadTimeMs" json:"loadTimeMs"`
	Title             string   `mapstructure:"title" json:"title"`
	MetaDescription   string   `mapstructure:"metaDescription" json:"metaDescription"`
	H1                string   `mapstructure:"h1" json:"h1"`
	CanonicalURL      string   `mapstructure:"canonicalUrl" json:"canonicalUrl"`
	OGTitle           string   `mapstructure:"ogTitle" json:"ogTitle"`
	OGDescription     string   `mapstructure:"ogDescription" json:"ogDescription"`
	SchemaType        string   `mapstructure:"schemaType" json:"schemaType"`
	WordCount         int      `mapstructure:"wordCount" json:"wordCount"`
	MissingAltCount   int      `mapstructure:"missingAltCount" json:"missingAltCount"`
	HasSchema         bool     `mapstructure:"hasSchema" json:"hasSchema"`
	RedirectCount     int      `mapstructure:"redirectCount" json:"redirectCount"`
	IsBroken          bool     `mapstructure:"isBroken" json:"isBroken"`
	CanonicalMismatch bool     `mapstructure:"canonicalMismatch" json:"canonicalMismatch"`
	DuplicateTitle    bool     `mapstructure:"duplicateTitle" json:"duplicateTitle"`
	DuplicateDesc     bool     `mapstructure:"duplicateDesc" json:"duplicateDesc"`
	OnPageScore       int      `mapstructure:"onPageScore" json:"onPageScore"`
	Checks            []string `mapstructure:"checks" json:"checks"`
}

// ToMap converts the signals to their open-map persisted form.
func (s *TechnicalSignals) ToMap() (JSONBMap, error) {
	var out map[string]any
	if err := mapstructure.Decode(s, &out); err != nil {
		return nil, fmt.Errorf("encode signals: %w", err)
	}
	return out, nil
}

// SignalsFromMap builds the typed view from a persisted signals map.
// Unknown keys are ignored, so hand-added fields round-trip through
// MergeSignals without breaking decoding.
func SignalsFromMap(m JSONBMap) (*TechnicalSignals, error) {
	var s TechnicalSignals
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build signals decoder: %w", err)
	}
	if decodeErr := decoder.Decode(map[string]any(m)); decodeErr != nil {
		return nil, fmt.Errorf("decode signals: %w", decodeErr)
	}
	return &s, nil
}

// MergeSignals shallow-merges newer onto older, right-biased on overlapping
// keys. Keys present only in older are preserved; neither input is mutated.
func MergeSignals(older, newer JSONBMap) JSONBMap {
	merged := make(JSONBMap, len(older)+len(newer))
	for k, v := range older {
		merged[k] = v
	}
	for k, v := range newer {
		merged[k] = v
	}
	return merged
}
