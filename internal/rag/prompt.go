package rag

import (
	"strings"

	"github.com/hyperjump/agilerag/internal/models"
)

// InsufficientKnowledgeMessage is the answer when nothing relevant was retrieved.
const InsufficientKnowledgeMessage = "I couldn't find any relevant information to answer your question."

// DefaultMaxHistory is how many trailing conversation turns reach the prompt.
const DefaultMaxHistory = 20

// Template placeholders.
const (
	PlaceholderContext  = "{context}"
	PlaceholderQuestion = "{question}"
	PlaceholderHistory  = "{chat_history}"
)

// DefaultPromptTemplate instructs the model to answer Agile questions from the supplied context only.
const DefaultPromptTemplate = `You are an educational assistant specialized in Agile methodologies (Scrum and Kanban)
for university computing students.

Your responsibilities:
1. Answer questions based EXCLUSIVELY on the provided knowledge base (manuals, syllabi, and guides)
2. Always cite your sources when providing information
3. If you don't find relevant information in the knowledge base, explicitly say so
4. Maintain technical accuracy and avoid hallucinations
5. Provide clear, structured responses suitable for learning

Knowledge base context:
{context}

Conversation history:
{chat_history}

Student question: {question}

Remember: Base your answer strictly on the provided context and cite sources when possible.`

// RenderPrompt fills tmpl with the context, question, and the last maxHistory turns.
func RenderPrompt(tmpl, contextText, question string, history []models.Turn, maxHistory int) string {
	r := strings.NewReplacer(
		PlaceholderContext, contextText,
		PlaceholderQuestion, question,
		PlaceholderHistory, FormatHistory(history, maxHistory),
	)
	return r.Replace(tmpl)
}

// FormatHistory renders the last max turns as "Student: ..." and "Assistant: ..." lines.
// max <= 0 keeps every turn.
func FormatHistory(history []models.Turn, max int) string {
	if max > 0 && len(history) > max {
		history = history[len(history)-max:]
	}
	if len(history) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		speaker := "Student"
		if t.Role == models.RoleAssistant {
			speaker = "Assistant"
		}
		lines = append(lines, speaker+": "+strings.TrimSpace(t.Content))
	}
	return strings.Join(lines, "\n")
}

func validateTemplate(tmpl string) error {
	for _, p := range []string{PlaceholderContext, PlaceholderQuestion} {
		if !strings.Contains(tmpl, p) {
			return models.NewValidationError("prompt_template", "missing placeholder "+p)
		}
	}
	return nil
}
