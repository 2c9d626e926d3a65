// Package prompt renders the message sequence sent to a chat backend for a
// form revision turn. The system instruction is the behavioral contract the
// rest of the pipeline enforces defensively: the model is instructed, not
// guaranteed, to follow it.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kayz/formforge/internal/form"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn handed to a chat backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemInstruction is the fixed system message for every revision turn.
const SystemInstruction = `You are a form generation assistant. You will help the user build and update a form structure through a series of interactions. Each time the user provides a description or instruction, you will generate or update the form structure in JSON format. Do not provide any explanation or additional text; only return the JSON.

Follow these rules:
1. Start with an empty form if no form exists yet.
2. Only create or modify fields that the user explicitly requests in the latest instruction.
3. When the user requests to remove specific fields, remove only those fields from the existing form.
4. If the user questions or points out a mistake regarding a field (e.g., "I didn't ask for this field"), remove that field and acknowledge the correction in the message.
5. Maintain all existing fields unless explicitly instructed to remove them.
6. Fields are required unless the user says they are optional.

IMPORTANT: Always respond with only valid JSON in this exact format, no other text and no markdown fencing:
{
    "message": "Form updated: [brief description of changes]",
    "form_data": {
        "fields": [
            {
                "name": "field_name",
                "label": "Field Label",
                "type": "field_type",
                "required": true
            }
        ]
    }
}

Available field types: text, number, email, date, file, image, radio, dropdown, checkbox
For radio/dropdown, include an "options" array with "value" and "label"
Use snake_case for field names; every field name must be unique
Always return the complete form with all fields, never a partial update`

const currentFormHeader = "Current form has these fields:"
const requestHeader = "User request:"

// BuildMessages produces the two-message sequence for one revision turn.
// On a non-empty form the user turn embeds the current form as JSON so the
// model has the full revision context; on an empty form the instruction is
// sent verbatim.
func BuildMessages(instruction string, current form.Form) []Message {
	return []Message{
		{Role: RoleSystem, Content: SystemInstruction},
		{Role: RoleUser, Content: UserTurn(instruction, current)},
	}
}

// UserTurn renders the user message for the given instruction and form.
func UserTurn(instruction string, current form.Form) string {
	if len(current.Fields) == 0 {
		return instruction
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", currentFormHeader, current.IndentedJSON())
	fmt.Fprintf(&b, "%s %s\n\n", requestHeader, instruction)
	b.WriteString(`Remember to:
1. Keep all existing fields
2. Add/modify fields based on the request
3. Return the complete form with all fields`)
	return b.String()
}

// ParseUserTurn recovers the instruction and embedded form from a rendered
// user message. The offline rule-based backend uses this to see the same
// context an LLM would.
func ParseUserTurn(content string) (string, form.Form) {
	if !strings.HasPrefix(content, currentFormHeader) {
		return content, form.Empty()
	}

	rest := strings.TrimPrefix(content, currentFormHeader)
	idx := strings.Index(rest, requestHeader)
	if idx < 0 {
		return content, form.Empty()
	}

	var current form.Form
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:idx])), &current); err != nil {
		return content, form.Empty()
	}
	if current.Fields == nil {
		current.Fields = []form.Field{}
	}

	instruction := strings.TrimSpace(strings.TrimPrefix(rest[idx:], requestHeader))
	if cut := strings.Index(instruction, "\n\nRemember to:"); cut >= 0 {
		instruction = strings.TrimSpace(instruction[:cut])
	}
	return instruction, current
}
