package summarize

// systemPrompt asks for the four-section status report that becomes the body
// of SESSION-STATE.md.
const systemPrompt = `You are summarizing a conversation session. Create a concise SESSION-STATE.md that captures:

1. **Current Task** - What was being worked on
2. **Key Context** - Important facts, decisions, or discoveries
3. **Pending Actions** - What still needs to be done
4. **Blockers** - Any issues or problems encountered

Keep it brief and actionable. Use bullet points. Focus on what the next session needs to know to continue effectively.

Format your response as markdown, starting with "## Current Task".`

// userPromptPrefix precedes the formatted conversation in the user message.
const userPromptPrefix = "Summarize this conversation into a SESSION-STATE.md:\n\n"

// buildUserPrompt embeds the formatted conversation in the user message.
func buildUserPrompt(conversation string) string {
	return userPromptPrefix + conversation
}
