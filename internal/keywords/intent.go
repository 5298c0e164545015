package keywords

import (
	"strings"

	"github.com/jonesrussell/funnelforge/internal/domain"
)

// Word lists checked against the keyword text, most specific intent
// first. Pages carrying none of them are treated as informational.
var (
	transactionalWords = []string{
		"buy", "price", "shop", "purchase", "order", "discount", "coupon", "deal",
	}
	commercialWords = []string{
		"best", "top", "review", "vs", "versus", "alternative", "compare", "comparison",
	}
	informationalPhrases = []string{
		"what is", "how to", "benefits", "guide", "tutorial", "tips",
	}
)

// ClassifyIntent maps a keyword to a search intent label.
func ClassifyIntent(keyword string) string {
	lowered := strings.ToLower(keyword)
	words := strings.Fields(lowered)

	if containsAnyWord(words, transactionalWords) {
		return domain.IntentTransactional
	}
	if containsAnyWord(words, commercialWords) {
		return domain.IntentCommercial
	}
	for _, phrase := range informationalPhrases {
		if strings.Contains(lowered, phrase) {
			return domain.IntentInformational
		}
	}
	return domain.IntentInformational
}

func containsAnyWord(words, markers []string) bool {
	for _, w := range words {
		for _, m := range markers {
			if w == m {
				return true
			}
		}
	}
	return false
}
