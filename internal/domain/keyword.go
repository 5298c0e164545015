package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
)

// competitionFloor prevents near-zero competition values from inflating
// keyword scores to infinity.
const competitionFloor = 0.1

// Keyword provider source labels recorded for provenance.
const (
	ProviderDataForSEO = "dataforseo"
	ProviderGemini     = "gemini"
	ProviderSeed       = "seed"
)

// Keyword intent labels.
const (
	IntentInformational = "informational"
	IntentCommercial    = "commercial"
	IntentTransactional = "transactional"
)

// KeywordCandidate is a scored keyword produced by the resolver chain.
// Candidates are transient; selected ones are persisted as a page's
// KeywordCluster.
type KeywordCandidate struct {
	Keyword        string  `json:"keyword"`
	Volume         int     `json:"volume"`
	CPC            float64 `json:"cpc"`
	Competition    float64 `json:"competition"`
	Score          float64 `json:"score"`
	Intent         string  `json:"intent"`
	ProviderSource string  `json:"provider_source"`
}

// ComputeScore derives the ranking score from volume, CPC, and competition.
func (k *KeywordCandidate) ComputeScore() {
	competition := k.Competition
	if competition < competitionFloor {
		competition = competitionFloor
	}
	k.Score = float64(k.Volume) * k.CPC / competition
}

// SortCandidates orders candidates by score descending, ties broken by
// volume descending then keyword ascending, so repeated runs over the same
// inputs produce the same ordering.
func SortCandidates(candidates []KeywordCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Volume != candidates[j].Volume {
			return candidates[i].Volume > candidates[j].Volume
		}
		return candidates[i].Keyword < candidates[j].Keyword
	})
}

// KeywordRef is a single entry in a page's keyword cluster.
type KeywordRef struct {
	Keyword   string  `json:"keyword"`
	Volume    int     `json:"volume"`
	Score     float64 `json:"score"`
	Intent    string  `json:"intent"`
	IsPrimary bool    `json:"is_primary"`
}

// KeywordCluster is the ordered keyword list assigned to a page. It
// implements sql.Scanner and driver.Valuer for JSONB storage.
type KeywordCluster []KeywordRef

// Primary returns the cluster's primary keyword, falling back to the
// first entry when none is flagged. Empty clusters return "".
func (c KeywordCluster) Primary() string {
	for _, ref := range c {
		if ref.IsPrimary {
			return ref.Keyword
		}
	}
	if len(c) > 0 {
		return c[0].Keyword
	}
	return ""
}

// Scan implements the sql.Scanner interface.
func (c *KeywordCluster) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for KeywordCluster")
	}

	if len(data) == 0 {
		*c = KeywordCluster{}
		return nil
	}

	return json.Unmarshal(data, c)
}

// Value implements the driver.Valuer interface.
func (c KeywordCluster) Value() (driver.Value, error) {
	if len(c) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

// ClusterFromCandidates converts resolved candidates into cluster entries,
// marking the first entry (highest ranked) as primary.
func ClusterFromCandidates(candidates []KeywordCandidate) KeywordCluster {
	cluster := make(KeywordCluster, 0, len(candidates))
	for i, cand := range candidates {
		cluster = append(cluster, KeywordRef{
			Keyword:   cand.Keyword,
			Volume:    cand.Volume,
			Score:     cand.Score,
			Intent:    cand.Intent,
			IsPrimary: i == 0,
		})
	}
	return cluster
}
