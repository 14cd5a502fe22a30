package aggregator

import (
	"sort"

	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

type Insight struct {
	Total               int                `json:"total"`
	Completed           int                `json:"completed"`
	CompletionRate      float64            `json:"completion_rate"`
	ServiceCounts       map[string]int     `json:"service_counts"`
	CompletionByService map[string]float64 `json:"completion_by_service"`
	TopService          string             `json:"top_service,omitempty"`
	NameCoverage        float64            `json:"name_coverage"`
	CompanyCoverage     float64            `json:"company_coverage"`
	SummaryCoverage     float64            `json:"summary_coverage"`
	AvgMessages         float64            `json:"avg_messages"`
	Partial             int                `json:"partial"`
	FailedFields        map[string]int     `json:"failed_fields"`
	ShortCompleted      int                `json:"short_completed"`
}

// Aggregate summarizes analysis records for reporting.
func Aggregate(records []types.AnalysisRecord) Insight {
	ins := Insight{
		Total:               len(records),
		ServiceCounts:       map[string]int{},
		CompletionByService: map[string]float64{},
		FailedFields:        map[string]int{},
	}
	completedBy := map[string]int{}
	var names, companies, summaries, messages int
	for _, r := range records {
		svc := string(r.ServiceInterest)
		ins.ServiceCounts[svc]++
		if r.IsCompleted {
			ins.Completed++
			completedBy[svc]++
		}
		if r.ClientName != nil {
			names++
		}
		if r.CompanyName != nil {
			companies++
		}
		if r.Summary != nil {
			summaries++
		}
		if r.Status != types.StatusComplete {
			ins.Partial++
		}
		for _, f := range r.FailedFields {
			ins.FailedFields[f]++
		}
		if r.ShortCompleted() {
			ins.ShortCompleted++
		}
		messages += r.TotalMessages
	}
	if ins.Total == 0 {
		return ins
	}
	total := float64(ins.Total)
	ins.CompletionRate = float64(ins.Completed) / total
	ins.NameCoverage = float64(names) / total
	ins.CompanyCoverage = float64(companies) / total
	ins.SummaryCoverage = float64(summaries) / total
	ins.AvgMessages = float64(messages) / total
	for svc, n := range ins.ServiceCounts {
		ins.CompletionByService[svc] = float64(completedBy[svc]) / float64(n)
	}
	ins.TopService = topService(ins.ServiceCounts)
	return ins
}

// topService is the most requested specific service; general information
// only wins when nothing else was asked for.
func topService(counts map[string]int) string {
	var keys []string
	for k := range counts {
		if k != string(taxonomy.Default) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		if counts[string(taxonomy.Default)] > 0 {
			return string(taxonomy.Default)
		}
		return ""
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys[0]
}
