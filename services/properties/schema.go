package properties

import "workflow-builder/api/services/workflow"

// FieldKind tells the properties panel which input to render.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldTextarea FieldKind = "textarea"
	FieldEmail    FieldKind = "email"
	FieldURL      FieldKind = "url"
	FieldSelect   FieldKind = "select"
	FieldDuration FieldKind = "duration"
	FieldList     FieldKind = "list"
	FieldObject   FieldKind = "object"
)

// Field describes one editable configuration key.
type Field struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"kind"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder,omitempty"`
	Options     []string  `json:"options,omitempty"`
}

var webhookMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// Schema returns the editable fields for a node type.
func Schema(t workflow.NodeType) []Field {
	switch t {
	case workflow.ManualTrigger:
		return []Field{}
	case workflow.TelegramGetChat:
		return []Field{
			{Key: "chatId", Label: "Chat ID", Kind: FieldText, Required: true, Placeholder: "-1001234567890"},
		}
	case workflow.EmailSend:
		return []Field{
			{Key: "to", Label: "To", Kind: FieldEmail, Required: true, Placeholder: "recipient@example.com"},
			{Key: "subject", Label: "Subject", Kind: FieldText, Required: true},
			{Key: "body", Label: "Body", Kind: FieldTextarea},
		}
	case workflow.Webhook:
		return []Field{
			{Key: "path", Label: "Path", Kind: FieldText, Required: true, Placeholder: "/hooks/orders"},
			{Key: "method", Label: "HTTP method", Kind: FieldSelect, Required: true, Options: webhookMethods},
			{Key: "url", Label: "Target URL", Kind: FieldURL, Placeholder: "https://example.com/hook"},
		}
	case workflow.Schedule:
		return []Field{
			{Key: "interval", Label: "Interval", Kind: FieldDuration, Required: true, Placeholder: "15m"},
		}
	case workflow.AppEvent:
		return []Field{
			{Key: "app", Label: "App", Kind: FieldText, Required: true},
			{Key: "event", Label: "Event", Kind: FieldText, Required: true},
		}
	case workflow.FormSubmission:
		return []Field{
			{Key: "title", Label: "Form title", Kind: FieldText, Required: true},
			{Key: "fields", Label: "Fields", Kind: FieldList, Required: true},
		}
	case workflow.ExecutedByWorkflow:
		return []Field{
			{Key: "workflowId", Label: "Calling workflow", Kind: FieldText},
		}
	case workflow.ChatMessage:
		return []Field{
			{Key: "channel", Label: "Channel", Kind: FieldText, Required: true},
		}
	case workflow.Evaluation:
		return []Field{
			{Key: "dataset", Label: "Dataset", Kind: FieldText, Required: true},
			{Key: "metric", Label: "Metric", Kind: FieldText},
		}
	case workflow.Other:
		return []Field{
			{Key: "", Label: "Parameters", Kind: FieldObject},
		}
	default:
		return nil
	}
}
