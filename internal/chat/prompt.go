package chat

import "strings"

// Refusal is the exact reply the model must give when the context does not
// hold the answer.
const Refusal = "I don't have that in the database yet."

// SystemPrompt binds the model to the supplied context.
const SystemPrompt = `You are FirmLens Assistant.

Rules (must follow):
- Answer ONLY using the provided CONTEXT from the Neo4j database.
- If the context does not contain the answer, say exactly: "` + Refusal + `"
- Do NOT guess, do NOT use outside knowledge.
- If you reference a news item, include its source name and URL if present in context.
- If you cite numbers (sales, profit, margins), they must appear in the context.
- Keep answers concise (4-10 sentences). Use bullet points when helpful.
`

const userTemplate = "CONTEXT (Neo4j):\n{context}\n\nUSER QUESTION:\n{question}\n\nAnswer:"

// UserPrompt fills the human turn with the rendered context and question.
func UserPrompt(context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(userTemplate)
}
