package properties

import (
	"net/mail"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"workflow-builder/api/services/workflow"
)

// Issue is a problem with a node's current configuration. Issues do not block
// editing; they are shown next to the offending field.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var telegramChatID = regexp.MustCompile(`^-?\d+$`)

// Check validates cfg against the rules of its node type.
func Check(cfg workflow.NodeConfig) []Issue {
	var issues []Issue
	required := func(field, value string) bool {
		if strings.TrimSpace(value) == "" {
			issues = append(issues, Issue{Field: field, Message: "is required"})
			return false
		}
		return true
	}

	switch c := cfg.(type) {
	case workflow.ManualTriggerConfig, workflow.ExecutedByWorkflowConfig, workflow.OtherConfig:
	case workflow.TelegramGetChatConfig:
		if required("chatId", c.ChatID) && !telegramChatID.MatchString(c.ChatID) {
			issues = append(issues, Issue{Field: "chatId", Message: "must be a numeric chat id"})
		}
	case workflow.EmailSendConfig:
		if required("to", c.To) {
			if _, err := mail.ParseAddressList(c.To); err != nil {
				issues = append(issues, Issue{Field: "to", Message: "must be a list of email addresses"})
			}
		}
		required("subject", c.Subject)
	case workflow.WebhookConfig:
		if required("path", c.Path) && !strings.HasPrefix(c.Path, "/") {
			issues = append(issues, Issue{Field: "path", Message: "must start with /"})
		}
		if required("method", c.Method) && !slices.Contains(webhookMethods, strings.ToUpper(c.Method)) {
			issues = append(issues, Issue{Field: "method", Message: "is not a supported HTTP method"})
		}
		if c.URL != "" {
			if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				issues = append(issues, Issue{Field: "url", Message: "must be an absolute http(s) URL"})
			}
		}
	case workflow.ScheduleConfig:
		if required("interval", c.Interval) {
			if d, err := time.ParseDuration(c.Interval); err != nil || d <= 0 {
				issues = append(issues, Issue{Field: "interval", Message: "must be a positive duration such as 15m"})
			}
		}
	case workflow.AppEventConfig:
		required("app", c.App)
		required("event", c.Event)
	case workflow.FormSubmissionConfig:
		required("title", c.Title)
		if len(c.Fields) == 0 {
			issues = append(issues, Issue{Field: "fields", Message: "is required"})
		}
		seen := make(map[string]bool, len(c.Fields))
		for _, f := range c.Fields {
			name := strings.TrimSpace(f)
			if name == "" || seen[name] {
				issues = append(issues, Issue{Field: "fields", Message: "names must be unique and non-empty"})
				break
			}
			seen[name] = true
		}
	case workflow.ChatMessageConfig:
		required("channel", c.Channel)
	case workflow.EvaluationConfig:
		required("dataset", c.Dataset)
	case nil:
		issues = append(issues, Issue{Message: "configuration is missing"})
	}
	return issues
}
