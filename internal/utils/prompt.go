package utils

import "fmt"

// SystemPrompt frames every model call made on behalf of an agent
const SystemPrompt = "You are a supply-chain operations assistant working for a procurement team. " +
	"Answer the task concisely with the concrete next step for the agent."

const taskPromptFormat = `Task:
%s

Respond with a short plain-text recommendation.`

// FormatTaskPrompt builds the user prompt for a task, truncated to maxSize bytes
func (tp *TextProcessor) FormatTaskPrompt(task string, maxSize int) string {
	return fmt.Sprintf(taskPromptFormat, tp.ProcessText(task, maxSize))
}
