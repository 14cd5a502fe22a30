package extractor

import (
	"fmt"
	"strings"

	"convo-insights-go/internal/oracle"
	"convo-insights-go/internal/taxonomy"
)

const systemAnalyst = "Tu es un analyste des conversations de MarIA, l'assistante virtuelle de la CCI France-Colombie. Réponds exactement dans le format demandé, sans commentaire."

func buildNamePrompt(conversation string) string {
	return fmt.Sprintf(`Analyse cette conversation entre MarIA (agent CCI) et un client pour identifier le NOM ou PRÉNOM du client.

CONVERSATION:
%s
Règles:
- Cherche quand le client se présente ou donne son nom.
- Cherche quand MarIA utilise le nom du client.
- Si tu trouves un nom, réponds SEULEMENT le prénom (ou prénom + nom).
- Si aucun nom n'est trouvé, réponds exactement "%s".

Réponse (juste le nom):`, conversation, oracle.NotFound)
}

func buildCompanyPrompt(conversation string) string {
	return fmt.Sprintf(`Analyse cette conversation entre MarIA (agent CCI) et un client pour identifier le NOM DE L'ENTREPRISE du client.

CONVERSATION:
%s
Règles:
- Cherche quand le client mentionne son entreprise, sa société, sa compagnie ou son empresa.
- Réponds SEULEMENT le nom, sans préfixe comme "Entreprise:" ou "Société:".
- Si aucune entreprise n'est trouvée, réponds exactement "%s".

Réponse (juste le nom de l'entreprise):`, conversation, oracle.NotFound)
}

func buildSummaryPrompt(conversation string) string {
	return fmt.Sprintf(`Résume cette conversation entre MarIA (assistante virtuelle de la CCI France-Colombie) et un client.

CONVERSATION:
%s
Écris le résumé dans la langue dominante de la conversation (français ou espagnol), en exactement 3 points courts:
1. Besoins: ce que le client a exprimé.
2. Recommandations: services recommandés, contacts ou liens donnés par MarIA.
3. Statut: conversation complète ou non, et pourquoi.

Une ou deux phrases par point, ton professionnel.`, conversation)
}

func buildServicePrompt(conversation string) string {
	var services strings.Builder
	for i, d := range taxonomy.All() {
		fmt.Fprintf(&services, "%d. %s\n", i+1, d.Label)
	}
	return fmt.Sprintf(`Identifie quel service de la CCI France-Colombie intéresse le plus ce client.

CONVERSATION:
%s
SERVICES CCI DISPONIBLES:
%s
Instructions:
- Base-toi sur les questions, demandes et sujets abordés par le client.
- Retourne SEULEMENT le nom exact d'un service de la liste, sans numéro ni explication.
- Si aucun service spécifique n'est identifiable, retourne "%s".

Réponse (nom du service):`, conversation, services.String(), taxonomy.Default.Label())
}

func buildCompletionPrompt(agentMessages string) string {
	return fmt.Sprintf(`Voici TOUS les messages envoyés par MarIA (agent de la CCI France-Colombie) dans une conversation avec un client.

MESSAGES DE MARIA:
%s
La conversation est COMPLETE si au moins un de ces messages contient:
- une recommandation d'un service CCI nommé;
- un contact transmis (nom + numéro joignable, par exemple WhatsApp +57 ...);
- une orientation vers un membre précis de l'équipe CCI (%s);
- une information concrète et exploitable sur un service;
- un lien de suivi (réseaux sociaux, newsletter).

La conversation est INCOMPLETE si MarIA n'a envoyé que des salutations, des questions de qualification, des demandes de précision ou des informations génériques.

Commence ta réponse par "COMPLETE" ou "INCOMPLETE", suivi d'un tiret et d'une justification courte.`, agentMessages, staffList())
}

// staffList names every CCI contact of the taxonomy once, in order of appearance.
func staffList() string {
	seen := map[string]bool{}
	var names []string
	for _, d := range taxonomy.All() {
		for _, c := range d.Contacts {
			if !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		}
	}
	return strings.Join(names, ", ")
}
