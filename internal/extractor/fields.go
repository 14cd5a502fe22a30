package extractor

import (
	"context"
	"strings"

	"convo-insights-go/internal/oracle"
	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

// sentinels are the folded answers meaning "nothing to report".
var sentinels = map[string]bool{
	"not_found":     true,
	"not found":     true,
	"non_trouve":    true,
	"non trouve":    true,
	"no_encontrado": true,
	"no encontrado": true,
	"aucun":         true,
	"aucune":        true,
	"ninguno":       true,
	"ninguna":       true,
}

var entityPrefixes = []string{
	"nom:", "prenom:", "nombre:", "name:", "client:",
	"entreprise:", "societe:", "empresa:", "company:",
}

// EntityExtractor pulls one short named value (client name or company name)
// out of the opening of a conversation.
type EntityExtractor struct {
	base
	prompt func(string) string
}

func NewNameExtractor(o oracle.Client) *EntityExtractor {
	return &EntityExtractor{
		base:   newBase(o, types.FieldClientName, NameWindow, 30, 0),
		prompt: buildNamePrompt,
	}
}

func NewCompanyExtractor(o oracle.Client) *EntityExtractor {
	return &EntityExtractor{
		base:   newBase(o, types.FieldCompanyName, CompanyWindow, 50, 0),
		prompt: buildCompanyPrompt,
	}
}

func (e *EntityExtractor) Extract(ctx context.Context, t types.Transcript) Result[*string] {
	if len(t) == 0 {
		return absent[*string](nil)
	}
	out, err := e.ask(ctx, conversationID(t), e.prompt(Render(t, e.window)))
	if err != nil {
		return failed[*string](nil, err)
	}
	v := cleanEntity(out)
	if v == "" || isSentinel(v) {
		return absent[*string](nil)
	}
	return found(&v)
}

// cleanEntity keeps the first line and drops quotes, trailing punctuation and
// a leading "Nom:"-style label.
func cleanEntity(s string) string {
	if i := strings.IndexAny(s, "\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	folded := taxonomy.Fold(s)
	for _, p := range entityPrefixes {
		if strings.HasPrefix(folded, p) {
			// labels are ASCII once folded, so rune counts line up with the original
			s = string([]rune(s)[len([]rune(p)):])
			break
		}
	}
	return strings.Trim(s, " \t\"'`*«»“”.")
}

func isSentinel(s string) bool {
	return sentinels[taxonomy.Fold(strings.Trim(s, " .\"'"))]
}

// SummaryGenerator writes the three-point summary of a conversation.
type SummaryGenerator struct {
	base
}

func NewSummaryGenerator(o oracle.Client) *SummaryGenerator {
	return &SummaryGenerator{base: newBase(o, types.FieldSummary, SummaryWindow, 500, 0.3)}
}

// Generate returns the summary text, or a failed result with a nil value.
func (g *SummaryGenerator) Generate(ctx context.Context, t types.Transcript) Result[*string] {
	if len(t) == 0 {
		return absent[*string](nil)
	}
	out, err := g.ask(ctx, conversationID(t), buildSummaryPrompt(Render(t, g.window)))
	if err != nil {
		return failed[*string](nil, err)
	}
	if out == "" {
		return failed[*string](nil, oracle.ErrMalformed)
	}
	return found(&out)
}

// ServiceClassifier maps a conversation onto one taxonomy service.
type ServiceClassifier struct {
	base
}

func NewServiceClassifier(o oracle.Client) *ServiceClassifier {
	return &ServiceClassifier{base: newBase(o, types.FieldServiceInterest, ServiceWindow, 50, 0)}
}

// Classify always yields a valid service; on failure the value is the default
// service and the state says it was not actually classified.
func (c *ServiceClassifier) Classify(ctx context.Context, t types.Transcript) Result[taxonomy.Service] {
	if len(t) == 0 {
		return absent(taxonomy.Default)
	}
	out, err := c.ask(ctx, conversationID(t), buildServicePrompt(Render(t, c.window)))
	if err != nil {
		return failed(taxonomy.Default, err)
	}
	s := taxonomy.Normalize(out)
	if s == taxonomy.Default && !strings.EqualFold(strings.TrimSpace(out), taxonomy.Default.Label()) {
		c.log.WithField("conversation_id", conversationID(t)).WithField("answer", out).Debug("answer not in taxonomy, using default service")
	}
	return found(s)
}
