package service

import (
	"strings"

	"symptomrag/internal/domain"
)

// SystemPrompt frames every answer.
const SystemPrompt = "You are a helpful AI medical assistant.\n" +
	"Base your answers on the retrieved context, but also consider past conversation.\n" +
	"⚠️ Disclaimer: This is not medical advice. For educational purposes only.\n"

// BuildContext joins retrieved document texts, most similar first.
func BuildContext(results []domain.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Document.Text
	}
	return strings.Join(texts, "\n")
}

// BuildMessages returns the system turn, the prior history in order, and a
// user turn carrying the retrieved context and the question.
func BuildMessages(history []domain.Message, context, query string) []domain.Message {
	msgs := make([]domain.Message, 0, len(history)+2)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: SystemPrompt})
	msgs = append(msgs, history...)
	msgs = append(msgs, domain.Message{
		Role:    domain.RoleUser,
		Content: "Context:\n" + context + "\n\nQuestion: " + query,
	})
	return msgs
}
