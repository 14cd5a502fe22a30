package oracle

import (
	"context"
	"regexp"
)

var phonePattern = regexp.MustCompile(`\+\d{2}[\d ]{7,}`)

// MockClient is the offline oracle behind USE_MOCK_LLM=true. Answers are
// deterministic per task so batch runs can be exercised without an API key.
type MockClient struct{}

func (MockClient) Complete(_ context.Context, req Request) (string, error) {
	switch req.Task {
	case "client_name", "company_name":
		return NotFound, nil
	case "summary":
		return "1. Besoins: demande d'information sur les services de la CCI.\n" +
			"2. Recommandations: aucune recommandation précise.\n" +
			"3. Statut: conversation à qualifier.", nil
	case "service_interest":
		return "Information générale", nil
	case "completion":
		if phonePattern.MatchString(req.Prompt) {
			return "COMPLETE - un contact avec numéro a été transmis", nil
		}
		return "INCOMPLETE - aucune recommandation ni contact", nil
	}
	return "", ErrMalformed
}

// NotFound is the token extractors ask the oracle to answer when a value is absent.
const NotFound = "NOT_FOUND"
