package core

import (
	"fmt"

	"chatmate.app/chatmate/internal/store"
)

const (
	NoDocumentsMarker   = "No documents found."
	DocumentErrorMarker = "An error occurred while extracting context."
	NoHistoryMarker     = "No chat history found."
	HistoryErrorMarker  = "An error occurred while processing chat history."
	GenerationFallback  = "An error occurred while processing your query. Please try again later."
	AnswerStyleNote     = "Provide a detailed and thorough answer. Use a natural and conversational tone, and ensure the response feels engaging and human-like."

	promptTemplate = "Context: %s\n\nChat History: %s\n\nQuestion: %s\n\nAdditional Note: %s\n\nAnswer:"
)

// BuildPrompt fuses document context, history context and the question in a fixed order.
func BuildPrompt(documentContext, historyContext, query string) string {
	return fmt.Sprintf(promptTemplate, documentContext, historyContext, query, AnswerStyleNote)
}

func historyText(t store.Turn) string {
	return t.QueryText + "\n" + t.ResponseText
}
