package actionable

import (
	"fmt"
	"sort"
	"strings"

	"convo-insights-go/internal/aggregator"
	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

const (
	// services with fewer conversations are too noisy to judge
	minServiceSample    = 5
	lowCompletionRate   = 0.5
	lowNameCoverageRate = 0.3
)

// Generate turns aggregate insight into operator action cards, most urgent first.
func Generate(ins aggregator.Insight) []ActionCard {
	var cards []ActionCard

	if ins.ShortCompleted > 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%d conversations under %d messages are marked complete", ins.ShortCompleted, types.MinCompleteMessages),
			Action:  "Run `insights reconcile` to correct them",
			Impact:  "Completion rate no longer inflated by one-line exchanges",
		})
	}

	if svc, rate, ok := weakestService(ins); ok {
		s := taxonomy.Service(svc)
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("Low completion for %s (%.0f%% of %d conversations)", s.Label(), rate*100, ins.ServiceCounts[svc]),
			Action:  handoffAction(s),
			Impact:  "More conversations end with a concrete next step",
		})
	}

	if ins.Total > 0 && ins.NameCoverage < lowNameCoverageRate {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("Client name captured in only %.0f%% of conversations", ins.NameCoverage*100),
			Action:  "Have MarIA ask for the client's name and company in its first replies",
			Impact:  "Follow-ups can be addressed to a person",
		})
	}

	if ins.Partial > 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%d analyses are partial (%s)", ins.Partial, failedSummary(ins.FailedFields)),
			Action:  "Re-run `insights analyze` without --force to retry the failed fields",
			Impact:  "Complete records for reporting",
		})
	}

	if len(cards) == 0 {
		cards = append(cards, ActionCard{
			Insight: "No strong pattern detected",
			Action:  "Monitor and collect more data",
			Impact:  "Low immediate intervention",
		})
	}
	return cards
}

// weakestService finds the specific service with the lowest completion rate
// among those with enough conversations, if it is below the threshold.
func weakestService(ins aggregator.Insight) (string, float64, bool) {
	worst, lowest := "", 1.0
	var keys []string
	for k := range ins.CompletionByService {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, svc := range keys {
		rate := ins.CompletionByService[svc]
		if svc == string(taxonomy.Default) || ins.ServiceCounts[svc] < minServiceSample {
			continue
		}
		if rate < lowest {
			worst, lowest = svc, rate
		}
	}
	if worst == "" || lowest >= lowCompletionRate {
		return "", 0, false
	}
	return worst, lowest, true
}

func handoffAction(s taxonomy.Service) string {
	var contacts []string
	for _, d := range taxonomy.All() {
		if d.Key != s {
			continue
		}
		for _, c := range d.Contacts {
			contacts = append(contacts, fmt.Sprintf("%s (%s)", c.Name, c.Phone))
		}
	}
	if len(contacts) == 0 {
		return "Give MarIA a concrete handoff for this service"
	}
	return "Make MarIA hand these conversations to " + strings.Join(contacts, ", ")
}

func failedSummary(failed map[string]int) string {
	var keys []string
	for k := range failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, failed[k]))
	}
	return strings.Join(parts, ", ")
}
