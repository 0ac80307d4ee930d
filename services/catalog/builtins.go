package catalog

import (
	"workflow-builder/api/services/credential"
	"workflow-builder/api/services/workflow"
)

// Palette categories.
const (
	CategoryTriggers           = "triggers"
	CategoryAppEvent           = "app-event"
	CategoryAppAction          = "app-action"
	CategoryAI                 = "ai"
	CategoryDataTransformation = "data-transformation"
	CategoryFlow               = "flow"
	CategoryCore               = "core"
	CategoryHumanInLoop        = "human-in-loop"
	CategoryAddTrigger         = "add-trigger"
	CategoryOther              = "other"
)

func builtins() []workflow.NodeTemplate {
	return []workflow.NodeTemplate{
		{
			ID:          "manual-trigger",
			Type:        workflow.ManualTrigger,
			Label:       "Trigger manually",
			Description: "Runs the flow by clicking a button. Good for getting started quickly.",
			Icon:        "play",
			Category:    CategoryTriggers,
		},
		{
			ID:          "webhook-trigger",
			Type:        workflow.Webhook,
			Label:       "On webhook call",
			Description: "Runs the flow when an HTTP request arrives, or calls a URL when used as a step",
			Icon:        "webhook",
			Category:    CategoryTriggers,
			DefaultConfig: workflow.WebhookConfig{
				Path:   "/hooks/new",
				Method: "POST",
			},
		},
		{
			ID:            "schedule-trigger",
			Type:          workflow.Schedule,
			Label:         "On a schedule",
			Description:   "Runs the flow every day, hour, or custom interval",
			Icon:          "clock",
			Category:      CategoryTriggers,
			DefaultConfig: workflow.ScheduleConfig{Interval: "1h"},
		},
		{
			ID:          "app-event-trigger",
			Type:        workflow.AppEvent,
			Label:       "On app event",
			Description: "Runs the flow when something happens in an app like Telegram or Notion",
			Icon:        "zap",
			Category:    CategoryTriggers,
		},
		{
			ID:          "form-submission-trigger",
			Type:        workflow.FormSubmission,
			Label:       "On form submission",
			Description: "Generates a web form and runs the flow with the submitted data",
			Icon:        "file-text",
			Category:    CategoryTriggers,
			DefaultConfig: workflow.FormSubmissionConfig{
				Title:  "Contact us",
				Fields: []string{"name", "email"},
			},
		},
		{
			ID:          "executed-by-workflow",
			Type:        workflow.ExecutedByWorkflow,
			Label:       "When executed by another workflow",
			Description: "Runs the flow when called by the Execute Workflow node from a different workflow",
			Icon:        "git-branch",
			Category:    CategoryTriggers,
		},
		{
			ID:          "chat-message-trigger",
			Type:        workflow.ChatMessage,
			Label:       "On chat message",
			Description: "Runs the flow when a user sends a chat message, for use with AI nodes",
			Icon:        "message-square",
			Category:    CategoryTriggers,
		},
		{
			ID:          "evaluation-trigger",
			Type:        workflow.Evaluation,
			Label:       "When running evaluation",
			Description: "Runs a dataset through your workflow to test performance",
			Icon:        "bar-chart-3",
			Category:    CategoryTriggers,
		},
		{
			ID:                      "telegram-get-chat",
			Type:                    workflow.TelegramGetChat,
			Label:                   "Get a chat",
			Description:             "Get chat information from Telegram",
			Icon:                    "telegram",
			Category:                CategoryAppEvent,
			DefaultConfig:           workflow.TelegramGetChatConfig{},
			RequiredCredentialKinds: []string{credential.KindTelegram},
		},
		{
			ID:                      "email-send",
			Type:                    workflow.EmailSend,
			Label:                   "Send email",
			Description:             "Send an email message",
			Icon:                    "mail",
			Category:                CategoryOther,
			DefaultConfig:           workflow.EmailSendConfig{},
			RequiredCredentialKinds: []string{credential.KindEmail},
		},
		{
			ID:          "ai-agent",
			Type:        workflow.Other,
			Label:       "Build autonomous agents, summarise or search documents, etc.",
			Description: "AI-powered automation and intelligence",
			Icon:        "sparkles",
			Category:    CategoryAI,
		},
		{
			ID:          "data-transform",
			Type:        workflow.Other,
			Label:       "Manipulate, filter or convert data",
			Description: "Transform and process your workflow data",
			Icon:        "zap",
			Category:    CategoryDataTransformation,
		},
		{
			ID:          "flow-control",
			Type:        workflow.Other,
			Label:       "Branch, merge or loop the flow, etc.",
			Description: "Control the execution flow of your workflow",
			Icon:        "git-branch",
			Category:    CategoryFlow,
		},
		{
			ID:          "core-nodes",
			Type:        workflow.Other,
			Label:       "Set values, make HTTP requests, set webhooks, etc.",
			Description: "Essential workflow building blocks",
			Icon:        "database",
			Category:    CategoryCore,
		},
		{
			ID:          "human-approval",
			Type:        workflow.Other,
			Label:       "Wait for approval or human input before continuing",
			Description: "Include human decision points in automation",
			Icon:        "users",
			Category:    CategoryHumanInLoop,
		},
		{
			ID:          "additional-trigger",
			Type:        workflow.ManualTrigger,
			Label:       "Triggers start your workflow. Workflows can have multiple triggers.",
			Description: "Add more ways to start your workflow",
			Icon:        "plus",
			Category:    CategoryAddTrigger,
		},
	}
}
