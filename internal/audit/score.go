package audit

// Rubric penalties. The score starts at 100 and floors at 0; each triggered
// condition appends its check string in evaluation order.
const (
	penaltyMissingTitle = 20
	penaltyTitleLength  = 10
	penaltyMissingDesc  = 20
	penaltyDescLength   = 5
	penaltyMissingH1    = 20
	penaltyMissingAlt   = 10
	penaltyThinContent  = 10

	minTitleLen = 10
	maxTitleLen = 60
	minDescLen  = 50
	maxDescLen  = 160
	minWords    = 300

	maxScore = 100
)

// Check strings recorded alongside each triggered penalty.
const (
	CheckMissingTitle  = "Missing Title"
	CheckTitleTooShort = "Title too short"
	CheckTitleTooLong  = "Title too long"
	CheckMissingDesc   = "Missing Meta Desc"
	CheckDescLength    = "Meta Desc length"
	CheckMissingH1     = "Missing H1"
	CheckMissingAlt    = "Images missing alt text"
	CheckThinContent   = "Thin content"
)

// scoreSignals applies the rubric to an extraction and returns the score
// plus the ordered check list. Recomputing the same inputs always yields
// the same result.
func scoreSignals(ex *extraction) (int, []string) {
	score := maxScore
	checks := []string{}

	if ex.Title == "" {
		score -= penaltyMissingTitle
		checks = append(checks, CheckMissingTitle)
	} else if len(ex.Title) < minTitleLen {
		score -= penaltyTitleLength
		checks = append(checks, CheckTitleTooShort)
	} else if len(ex.Title) > maxTitleLen {
		score -= penaltyTitleLength
		checks = append(checks, CheckTitleTooLong)
	}

	if ex.MetaDescription == "" {
		score -= penaltyMissingDesc
		checks = append(checks, CheckMissingDesc)
	} else if len(ex.MetaDescription) < minDescLen || len(ex.MetaDescription) > maxDescLen {
		score -= penaltyDescLength
		checks = append(checks, CheckDescLength)
	}

	if ex.H1 == "" {
		score -= penaltyMissingH1
		checks = append(checks, CheckMissingH1)
	}

	if ex.MissingAltCount > 0 {
		// Flat penalty regardless of how many images lack alt text.
		score -= penaltyMissingAlt
		checks = append(checks, CheckMissingAlt)
	}

	if ex.WordCount < minWords {
		score -= penaltyThinContent
		checks = append(checks, CheckThinContent)
	}

	if score < 0 {
		score = 0
	}

	return score, checks
}
