package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo-insights-go/internal/oracle"
	"convo-insights-go/internal/taxonomy"
	"convo-insights-go/internal/types"
)

type answer struct {
	text string
	err  error
}

// scriptedOracle answers per task and remembers every request it saw.
type scriptedOracle struct {
	mu       sync.Mutex
	answers  map[string]answer
	requests []oracle.Request
}

func (s *scriptedOracle) Complete(_ context.Context, req oracle.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	a, ok := s.answers[req.Task]
	if !ok {
		return "", fmt.Errorf("%w: no script for %s", oracle.ErrMalformed, req.Task)
	}
	return a.text, a.err
}

func (s *scriptedOracle) last() oracle.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func transcript(turns ...string) types.Transcript {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var t types.Transcript
	for i, turn := range turns {
		role := types.RoleCustomer
		if strings.HasPrefix(turn, "A:") {
			role = types.RoleAgent
		}
		t = append(t, types.Message{
			ConversationID: "conv-1",
			MessageID:      fmt.Sprintf("m%d", i),
			Role:           role,
			Content:        strings.TrimSpace(turn[2:]),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	return t
}

func TestRenderWindow(t *testing.T) {
	tr := transcript("C:Bonjour", "A:Bonjour, je suis MarIA", "C:"+strings.Repeat("x", 20))

	out := Render(tr, Window{MaxMessages: 2})
	assert.Equal(t, "Client: Bonjour\nMarIA: Bonjour, je suis MarIA\n", out)

	out = Render(tr, Window{MaxChars: 5})
	assert.Contains(t, out, "Client: xxxxx […]\n")

	assert.Equal(t, "1. Bonjour, je suis MarIA\n", RenderAgent(tr, CompletionWindow))
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "écoût […]", truncate("écoûté", 5))
	assert.Equal(t, "court", truncate("court", 5))
}

func TestEntityExtractor(t *testing.T) {
	tr := transcript("C:Bonjour, je m'appelle Ana", "A:Enchantée Ana")
	cases := []struct {
		name  string
		reply answer
		state types.FieldState
		value string
	}{
		{"plain", answer{text: "Ana"}, types.FieldFound, "Ana"},
		{"label and quotes", answer{text: `Nom: "Ana Gómez".`}, types.FieldFound, "Ana Gómez"},
		{"sentinel", answer{text: "NOT_FOUND"}, types.FieldAbsent, ""},
		{"french sentinel", answer{text: "NON_TROUVÉ."}, types.FieldAbsent, ""},
		{"spanish sentinel spaced", answer{text: "NO ENCONTRADO"}, types.FieldAbsent, ""},
		{"spanish sentinel sentence case", answer{text: "No encontrado."}, types.FieldAbsent, ""},
		{"aucun", answer{text: "Aucun"}, types.FieldAbsent, ""},
		{"ninguno", answer{text: "Ninguno."}, types.FieldAbsent, ""},
		{"oracle error", answer{err: oracle.ErrTransient}, types.FieldFailed, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := &scriptedOracle{answers: map[string]answer{types.FieldClientName: tc.reply}}
			res := NewNameExtractor(o).Extract(context.Background(), tr)
			assert.Equal(t, tc.state, res.State)
			if tc.value == "" {
				assert.Nil(t, res.Value)
			} else {
				require.NotNil(t, res.Value)
				assert.Equal(t, tc.value, *res.Value)
			}
			if tc.state == types.FieldFailed {
				assert.ErrorIs(t, res.Err, oracle.ErrTransient)
			}
		})
	}
}

func TestEntityExtractorRequest(t *testing.T) {
	var turns []string
	for i := 0; i < 14; i++ {
		turns = append(turns, fmt.Sprintf("C:message %02d", i))
	}
	o := &scriptedOracle{answers: map[string]answer{types.FieldCompanyName: {text: "Café Andino SAS"}}}

	res := NewCompanyExtractor(o).Extract(context.Background(), transcript(turns...))
	require.Equal(t, types.FieldFound, res.State)
	assert.Equal(t, "Café Andino SAS", *res.Value)

	req := o.last()
	assert.Equal(t, types.FieldCompanyName, req.Task)
	assert.Equal(t, 50, req.MaxOutputTokens)
	assert.Zero(t, req.Temperature)
	assert.Contains(t, req.Prompt, "message 09")
	assert.NotContains(t, req.Prompt, "message 10")
}

func TestEmptyTranscriptSkipsOracle(t *testing.T) {
	o := &scriptedOracle{}
	assert.Equal(t, types.FieldAbsent, NewNameExtractor(o).Extract(context.Background(), nil).State)
	assert.Equal(t, types.FieldAbsent, NewSummaryGenerator(o).Generate(context.Background(), nil).State)
	assert.Empty(t, o.requests)
}

func TestSummaryGenerator(t *testing.T) {
	tr := transcript("C:Je cherche un partenaire en Colombie", "A:Je vous recommande l'équipe Appui Commercial")
	o := &scriptedOracle{answers: map[string]answer{types.FieldSummary: {text: "```\n1. Besoins: partenaire\n2. Recommandations: Appui Commercial\n3. Statut: complète\n```"}}}

	res := NewSummaryGenerator(o).Generate(context.Background(), tr)
	require.Equal(t, types.FieldFound, res.State)
	assert.Equal(t, "1. Besoins: partenaire\n2. Recommandations: Appui Commercial\n3. Statut: complète", *res.Value)
	assert.Equal(t, 500, o.last().MaxOutputTokens)
	assert.InDelta(t, 0.3, o.last().Temperature, 1e-9)

	o.answers[types.FieldSummary] = answer{err: oracle.ErrPermanent}
	res = NewSummaryGenerator(o).Generate(context.Background(), tr)
	assert.Equal(t, types.FieldFailed, res.State)
	assert.Nil(t, res.Value)
}

func TestServiceClassifier(t *testing.T) {
	tr := transcript("C:Je veux exporter du café en France", "A:Nos missions économiques peuvent vous aider")
	cases := []struct {
		reply answer
		want  taxonomy.Service
		state types.FieldState
	}{
		{answer{text: "Information générale"}, taxonomy.Default, types.FieldFound},
		{answer{text: "3. Formation"}, taxonomy.Training, types.FieldFound},
		{answer{text: "Je ne sais pas vraiment"}, taxonomy.Default, types.FieldFound},
		{answer{err: oracle.ErrTransient}, taxonomy.Default, types.FieldFailed},
	}
	for _, tc := range cases {
		o := &scriptedOracle{answers: map[string]answer{types.FieldServiceInterest: tc.reply}}
		res := NewServiceClassifier(o).Classify(context.Background(), tr)
		assert.Equal(t, tc.want, res.Value, tc.reply.text)
		assert.Equal(t, tc.state, res.State, tc.reply.text)
		assert.True(t, res.Value.Valid())
	}
}

func TestServicePromptListsTaxonomyInOrder(t *testing.T) {
	p := buildServicePrompt("Client: bonjour\n")
	prev := -1
	for _, d := range taxonomy.All() {
		i := strings.Index(p, d.Label)
		require.GreaterOrEqual(t, i, 0, d.Label)
		assert.Greater(t, i, prev)
		prev = i
	}
}

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		in   string
		want bool
		err  bool
	}{
		{"COMPLETE - contact transmis", true, false},
		{"INCOMPLETE - seulement des salutations", false, false},
		{"**INCOMPLETE**", false, false},
		{"Incomplète: pas de contact", false, false},
		{"COMPLETA - se dio un contacto", true, false},
		{"Verdict: INCOMPLETE", false, false},
		{"Je ne peux pas juger", false, true},
		{"Pas complète - seulement des salutations", false, false},
		{"NOT COMPLETE - greetings only", false, false},
		{"No está completa", false, false},
		{"NON COMPLETE", false, false},
		{"n'est pas complète", false, false},
		{"La conversation est complète", false, true},
		{"Statut : COMPLETE", true, false},
	}
	for _, tc := range cases {
		got, err := ParseVerdict(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestCompletionClassifier(t *testing.T) {
	tr := transcript(
		"C:Bonjour, je veux exporter",
		"A:Bonjour ! Quel est votre secteur ?",
		"C:Le café",
		"A:Contactez Yasmine Azlabi au +57 304 658 9045 sur WhatsApp",
	)
	o := &scriptedOracle{answers: map[string]answer{types.FieldCompletion: {text: "COMPLETE - contact transmis"}}}

	v := NewCompletionClassifier(o).Classify(context.Background(), tr)
	assert.True(t, v.IsCompleted)
	assert.Equal(t, types.FieldFound, v.State)
	assert.Equal(t, "COMPLETE - contact transmis", v.Rationale)

	req := o.last()
	assert.Contains(t, req.Prompt, "+57 304 658 9045")
	assert.NotContains(t, req.Prompt, "Le café")
	assert.Contains(t, req.Prompt, "Yasmine Azlabi")
}

func TestCompletionClassifierFailures(t *testing.T) {
	tr := transcript("C:Bonjour", "A:Bonjour !")

	o := &scriptedOracle{answers: map[string]answer{types.FieldCompletion: {err: oracle.ErrTransient}}}
	v := NewCompletionClassifier(o).Classify(context.Background(), tr)
	assert.False(t, v.IsCompleted)
	assert.Equal(t, types.FieldFailed, v.State)
	assert.True(t, strings.HasPrefix(v.Rationale, "error: "))

	o.answers[types.FieldCompletion] = answer{text: "peut-être"}
	v = NewCompletionClassifier(o).Classify(context.Background(), tr)
	assert.False(t, v.IsCompleted)
	assert.Equal(t, types.FieldFailed, v.State)
}

func TestCompletionClassifierWithoutAgentMessages(t *testing.T) {
	o := &scriptedOracle{}
	v := NewCompletionClassifier(o).Classify(context.Background(), transcript("C:Allô ?", "C:Il y a quelqu'un ?"))
	assert.False(t, v.IsCompleted)
	assert.Equal(t, RationaleNoAgentMessages, v.Rationale)
	assert.Empty(t, o.requests)
}
