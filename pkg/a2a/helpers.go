package a2a

import (
	"strings"
	"unicode"
)

// SanitizeAgentName converts a card name into an identifier usable in
// tool names: every whitespace rune is removed, everything else is kept.
// "Helper Bot" becomes "HelperBot".
func SanitizeAgentName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
}

// NewTextMessage builds a user message holding a single text part.
func NewTextMessage(messageID, text string) Message {
	return Message{
		Kind:      "message",
		MessageID: messageID,
		Role:      MessageRoleUser,
		Parts:     []Part{{Kind: PartKindText, Text: text}},
	}
}

// ExtractTextFromMessage concatenates the text parts of a message.
func ExtractTextFromMessage(msg *Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range msg.Parts {
		if part.Kind == PartKindText && part.Text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// ExtractTextFromTask pulls the most useful text out of a task: artifact
// text first, then the latest status message.
func ExtractTextFromTask(task *Task) string {
	if task == nil {
		return ""
	}

	var sb strings.Builder
	for _, artifact := range task.Artifacts {
		for _, part := range artifact.Parts {
			if part.Kind == PartKindText && part.Text != "" {
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(part.Text)
			}
		}
	}
	if sb.Len() > 0 {
		return sb.String()
	}

	return ExtractTextFromMessage(task.Status.Message)
}

// ExtractTextFromResult flattens a send result into displayable text.
func ExtractTextFromResult(result *SendResult) string {
	if result == nil {
		return ""
	}
	if result.Message != nil {
		return ExtractTextFromMessage(result.Message)
	}
	return ExtractTextFromTask(result.Task)
}
