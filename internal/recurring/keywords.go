package recurring

import "strings"

// subscriptionKeywords is a curated list of terms that commonly appear in
// subscription counterparty names. A match adds a fixed confidence bonus;
// it never creates a candidate on its own.
var subscriptionKeywords = []string{
	"netflix",
	"spotify",
	"hulu",
	"disney",
	"hbo",
	"youtube",
	"twitch",
	"audible",
	"apple music",
	"icloud",
	"patreon",
	"substack",
	"medium",
	"dropbox",
	"adobe",
	"microsoft",
	"prime",
	"subscription",
	"membership",
	"monthly",
	"annual",
	"recurring",
	"premium",
	"gym",
	"fitness",
	"insurance",
}

// matchesKeyword reports whether a counterparty name contains a known
// subscription term.
func matchesKeyword(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range subscriptionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
