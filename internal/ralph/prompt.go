package ralph

import (
	"fmt"
	"strings"

	"taskloop/internal/task"
)

// RenderPrompt builds the prompt handed to the agent for one task. The task
// id and content come first; the operational instructions tell the agent how
// to report completion back into the task store.
func RenderPrompt(t task.Task) string {
	var sb strings.Builder

	sb.WriteString("You are completing one task from an automated backlog.\n\n")
	sb.WriteString("## Task\n")
	sb.WriteString(fmt.Sprintf("**ID**: %s\n", t.ID))
	sb.WriteString(fmt.Sprintf("**Description**: %s\n\n", t.Content))

	sb.WriteString("## Instructions\n")
	sb.WriteString("1. Implement the task exactly as described\n")
	sb.WriteString(fmt.Sprintf("2. When the task is fully done, run: taskloop done %s\n", t.ID))
	sb.WriteString(fmt.Sprintf("3. If you discover required follow-up work, record it with: taskloop add <description> --after %s\n", t.ID))
	sb.WriteString(fmt.Sprintf("4. To note partial progress without finishing, run: taskloop append %s <note>\n", t.ID))
	sb.WriteString("5. Commit your changes and leave the working tree clean before exiting\n\n")

	sb.WriteString("Do NOT mark the task done unless it is genuinely complete. ")
	sb.WriteString("Exiting without marking it done means it will be retried.\n")

	return sb.String()
}

// RenderPlanPrompt builds the prompt for the plan command: the agent breaks
// a description down into backlog tasks via the task store CLI.
func RenderPlanPrompt(description string) string {
	var sb strings.Builder

	sb.WriteString("You are planning work for an automated backlog.\n\n")
	sb.WriteString("## Goal\n")
	sb.WriteString(description)
	sb.WriteString("\n\n")

	sb.WriteString("## Instructions\n")
	sb.WriteString("1. Study the repository to understand the current state\n")
	sb.WriteString("2. Break the goal into small, independently completable tasks\n")
	sb.WriteString("3. Record each task with: taskloop add <description>\n")
	sb.WriteString("4. Express ordering constraints with: taskloop add <description> --after <task-id>\n")
	sb.WriteString("5. Review the result with: taskloop list\n\n")

	sb.WriteString("Create tasks only; do not implement anything yet.\n")

	return sb.String()
}
