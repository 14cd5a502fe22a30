package extractor

import (
	"context"
	"errors"
	"strings"

	"convo-insights-go/internal/oracle"
	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

// RationaleNoAgentMessages is recorded when the agent never spoke.
const RationaleNoAgentMessages = "no agent messages"

var errNoVerdict = errors.New("no COMPLETE/INCOMPLETE verdict in answer")

// Verdict is the completion decision for one conversation.
type Verdict struct {
	IsCompleted bool
	Rationale   string
	State       types.FieldState
	Err         error
}

// CompletionClassifier decides whether the agent delivered something
// actionable, looking only at what the agent said.
type CompletionClassifier struct {
	base
}

func NewCompletionClassifier(o oracle.Client) *CompletionClassifier {
	return &CompletionClassifier{base: newBase(o, types.FieldCompletion, CompletionWindow, 150, 0)}
}

func (c *CompletionClassifier) Classify(ctx context.Context, t types.Transcript) Verdict {
	agent := t.AgentMessages()
	if len(agent) == 0 {
		return Verdict{Rationale: RationaleNoAgentMessages, State: types.FieldFound}
	}
	out, err := c.ask(ctx, conversationID(t), buildCompletionPrompt(RenderAgent(t, c.window)))
	if err != nil {
		return Verdict{Rationale: "error: " + err.Error(), State: types.FieldFailed, Err: err}
	}
	complete, err := ParseVerdict(out)
	if err != nil {
		return Verdict{Rationale: "error: " + err.Error(), State: types.FieldFailed, Err: err}
	}
	return Verdict{IsCompleted: complete, Rationale: out, State: types.FieldFound}
}

// verdictLabels may precede the verdict, as in "Verdict: COMPLETE".
var verdictLabels = []string{"verdict", "statut", "status", "reponse", "respuesta", "estado"}

// negations turn a following "complet..." into an incomplete verdict.
// "no esta " is listed before "no " so the longer form wins.
var negations = []string{"pas ", "non ", "not ", "no esta ", "no ", "n'est pas "}

const verdictTrim = " \"'`*#-:."

// ParseVerdict reads the verdict from the start of the oracle answer only.
// INCOMPLETE is checked before COMPLETE since the former contains the latter,
// and a leading negation ("pas complète", "NOT COMPLETE") is incomplete.
// French and Spanish spellings are accepted. Anything else is errNoVerdict.
func ParseVerdict(answer string) (bool, error) {
	f := strings.TrimLeft(taxonomy.Fold(answer), verdictTrim)
	for _, l := range verdictLabels {
		if rest, ok := strings.CutPrefix(f, l); ok && strings.HasPrefix(strings.TrimLeft(rest, " "), ":") {
			f = strings.TrimLeft(rest, verdictTrim)
			break
		}
	}
	switch {
	case strings.HasPrefix(f, "incomplet"):
		return false, nil
	case strings.HasPrefix(f, "complet"):
		return true, nil
	}
	for _, n := range negations {
		if rest, ok := strings.CutPrefix(f, n); ok {
			if strings.HasPrefix(strings.TrimLeft(rest, verdictTrim), "complet") {
				return false, nil
			}
			break
		}
	}
	return false, errNoVerdict
}
