package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"
)

// NodeConfig is the typed configuration of a node. Each NodeType has exactly
// one implementation; the set is closed to this package.
type NodeConfig interface {
	NodeType() NodeType
	Clone() NodeConfig
	sealed()
}

type ManualTriggerConfig struct{}

type TelegramGetChatConfig struct {
	ChatID string `json:"chatId" yaml:"chatId"`
}

type EmailSendConfig struct {
	To      string `json:"to" yaml:"to"`
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body" yaml:"body"`
}

// WebhookConfig calls URL when set; Path is the inbound path shown in the editor.
type WebhookConfig struct {
	Path   string `json:"path" yaml:"path"`
	Method string `json:"method" yaml:"method"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
}

// ScheduleConfig holds a Go duration string such as "15m".
type ScheduleConfig struct {
	Interval string `json:"interval" yaml:"interval"`
}

type AppEventConfig struct {
	App   string `json:"app" yaml:"app"`
	Event string `json:"event" yaml:"event"`
}

type FormSubmissionConfig struct {
	Title  string   `json:"title" yaml:"title"`
	Fields []string `json:"fields" yaml:"fields"`
}

type ExecutedByWorkflowConfig struct {
	WorkflowID string `json:"workflowId" yaml:"workflowId"`
}

type ChatMessageConfig struct {
	Channel string `json:"channel" yaml:"channel"`
}

type EvaluationConfig struct {
	Dataset string `json:"dataset" yaml:"dataset"`
	Metric  string `json:"metric" yaml:"metric"`
}

// OtherConfig is the free-form configuration of catch-all nodes. It encodes
// as a flat object.
type OtherConfig struct {
	Values map[string]any
}

func (ManualTriggerConfig) NodeType() NodeType      { return ManualTrigger }
func (TelegramGetChatConfig) NodeType() NodeType    { return TelegramGetChat }
func (EmailSendConfig) NodeType() NodeType          { return EmailSend }
func (WebhookConfig) NodeType() NodeType            { return Webhook }
func (ScheduleConfig) NodeType() NodeType           { return Schedule }
func (AppEventConfig) NodeType() NodeType           { return AppEvent }
func (FormSubmissionConfig) NodeType() NodeType     { return FormSubmission }
func (ExecutedByWorkflowConfig) NodeType() NodeType { return ExecutedByWorkflow }
func (ChatMessageConfig) NodeType() NodeType        { return ChatMessage }
func (EvaluationConfig) NodeType() NodeType         { return Evaluation }
func (OtherConfig) NodeType() NodeType              { return Other }

func (c ManualTriggerConfig) Clone() NodeConfig      { return c }
func (c TelegramGetChatConfig) Clone() NodeConfig    { return c }
func (c EmailSendConfig) Clone() NodeConfig          { return c }
func (c WebhookConfig) Clone() NodeConfig            { return c }
func (c ScheduleConfig) Clone() NodeConfig           { return c }
func (c AppEventConfig) Clone() NodeConfig           { return c }
func (c ExecutedByWorkflowConfig) Clone() NodeConfig { return c }
func (c ChatMessageConfig) Clone() NodeConfig        { return c }
func (c EvaluationConfig) Clone() NodeConfig         { return c }

func (c FormSubmissionConfig) Clone() NodeConfig {
	if c.Fields != nil {
		c.Fields = append([]string(nil), c.Fields...)
	}
	return c
}

func (c OtherConfig) Clone() NodeConfig {
	return OtherConfig{Values: deepCopyValue(c.Values).(map[string]any)}
}

func (ManualTriggerConfig) sealed()      {}
func (TelegramGetChatConfig) sealed()    {}
func (EmailSendConfig) sealed()          {}
func (WebhookConfig) sealed()            {}
func (ScheduleConfig) sealed()           {}
func (AppEventConfig) sealed()           {}
func (FormSubmissionConfig) sealed()     {}
func (ExecutedByWorkflowConfig) sealed() {}
func (ChatMessageConfig) sealed()        {}
func (EvaluationConfig) sealed()         {}
func (OtherConfig) sealed()              {}

func (c OtherConfig) MarshalJSON() ([]byte, error) {
	if c.Values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.Values)
}

func (c *OtherConfig) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &c.Values)
}

func (c OtherConfig) MarshalYAML() (any, error) {
	if c.Values == nil {
		return map[string]any{}, nil
	}
	return c.Values, nil
}

func (c *OtherConfig) UnmarshalYAML(value *yaml.Node) error {
	return value.Decode(&c.Values)
}

// NewConfig returns the zero configuration for t, or nil if t is unknown.
func NewConfig(t NodeType) NodeConfig {
	switch t {
	case ManualTrigger:
		return ManualTriggerConfig{}
	case TelegramGetChat:
		return TelegramGetChatConfig{}
	case EmailSend:
		return EmailSendConfig{}
	case Webhook:
		return WebhookConfig{Method: "POST"}
	case Schedule:
		return ScheduleConfig{}
	case AppEvent:
		return AppEventConfig{}
	case FormSubmission:
		return FormSubmissionConfig{}
	case ExecutedByWorkflow:
		return ExecutedByWorkflowConfig{}
	case ChatMessage:
		return ChatMessageConfig{}
	case Evaluation:
		return EvaluationConfig{}
	case Other:
		return OtherConfig{Values: map[string]any{}}
	default:
		return nil
	}
}

// DecodeConfigJSON decodes raw into the configuration struct for t. Empty or
// null input yields the zero configuration.
func DecodeConfigJSON(t NodeType, raw []byte) (NodeConfig, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return zeroConfig(t)
	}
	return decodeConfig(t, func(v any) error {
		dec := json.NewDecoder(bytes.NewReader(raw))
		if t != Other {
			dec.DisallowUnknownFields()
		}
		return dec.Decode(v)
	})
}

// DecodeConfigYAML decodes a YAML mapping into the configuration struct for t.
func DecodeConfigYAML(t NodeType, value *yaml.Node) (NodeConfig, error) {
	if value == nil || value.Kind == 0 || value.Tag == "!!null" {
		return zeroConfig(t)
	}
	return decodeConfig(t, value.Decode)
}

func zeroConfig(t NodeType) (NodeConfig, error) {
	cfg := NewConfig(t)
	if cfg == nil {
		return nil, fmt.Errorf("unknown node type %q", t)
	}
	return cfg, nil
}

func decodeConfig(t NodeType, decode func(any) error) (NodeConfig, error) {
	var (
		cfg NodeConfig
		err error
	)
	switch t {
	case ManualTrigger:
		var c ManualTriggerConfig
		err = decode(&c)
		cfg = c
	case TelegramGetChat:
		var c TelegramGetChatConfig
		err = decode(&c)
		cfg = c
	case EmailSend:
		var c EmailSendConfig
		err = decode(&c)
		cfg = c
	case Webhook:
		c := WebhookConfig{Method: "POST"}
		err = decode(&c)
		cfg = c
	case Schedule:
		var c ScheduleConfig
		err = decode(&c)
		cfg = c
	case AppEvent:
		var c AppEventConfig
		err = decode(&c)
		cfg = c
	case FormSubmission:
		var c FormSubmissionConfig
		err = decode(&c)
		cfg = c
	case ExecutedByWorkflow:
		var c ExecutedByWorkflowConfig
		err = decode(&c)
		cfg = c
	case ChatMessage:
		var c ChatMessageConfig
		err = decode(&c)
		cfg = c
	case Evaluation:
		var c EvaluationConfig
		err = decode(&c)
		cfg = c
	case Other:
		c := OtherConfig{}
		err = decode(&c)
		if c.Values == nil {
			c.Values = map[string]any{}
		}
		cfg = c
	default:
		return nil, fmt.Errorf("unknown node type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s config: %w", t, err)
	}
	return cfg, nil
}

// deepCopyValue copies the map/slice structure produced by JSON or YAML decoding.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return map[string]any{}
		}
		out := maps.Clone(val)
		for k, item := range out {
			out[k] = deepCopyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
