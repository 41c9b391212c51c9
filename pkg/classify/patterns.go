package classify

import "strings"

// Keyword tables for message-driven signals. Matching is lowercase
// substring; a message can hit several tables.

var gardenKeywords = []string{"garden", "lp", "pool", "apr", "yield", "harvest", "seed"}

var questKeywords = []string{"quest", "stamina", "mining", "fishing", "foraging", "training"}

var tradeKeywords = []string{"swap", "trade", "price", "chart", "buy", "sell", "dex"}

var intentKeywordTables = map[IntentArchetype][]string{
	IntentCasualPlayer:      {"fun", "new here", "how do i", "what is", "help"},
	IntentStrategist:        {"optimal", "strategy", "best team", "roi", "compare", "which hero"},
	IntentYieldFarmer:       {"apr", "apy", "yield", "compound", "emissions", "harvest"},
	IntentCollector:         {"gen0", "gen 0", "rare", "shiny", "mint", "summon", "floor"},
	IntentInvestorExtractor: {"withdraw", "cash out", "bridge out", "exit", "sell everything", "unstake all"},
}

var positiveKeywords = []string{"love", "awesome", "great", "thanks", "lets go", "excited"}

var churnKeywords = []string{"quit", "leaving", "done with", "rug", "dead game", "uninstall"}

// countHits returns how many recent messages contain at least one keyword
// from the table.
func countHits(recent []Message, table []string) int {
	n := 0
	for _, m := range recent {
		lc := strings.ToLower(m.Content)
		for _, kw := range table {
			if strings.Contains(lc, kw) {
				n++
				break
			}
		}
	}
	return n
}
