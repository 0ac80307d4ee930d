package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"workflow-builder/api/services/workflow"
)

// BuiltinOptions configures the executors used when no external node
// executor is wired in.
type BuiltinOptions struct {
	// Delay simulates the latency of work that has no real backend.
	Delay time.Duration
	// Timeout bounds every node. Zero disables it.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewBuiltinRegistry returns executors for every node type.
func NewBuiltinRegistry(opts BuiltinOptions) Registry {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	delay := opts.Delay

	r := Registry{
		workflow.ManualTrigger:      &TriggerExecutor{Delay: delay, Message: "Workflow execution started"},
		workflow.Schedule:           &TriggerExecutor{Delay: delay, Message: "Schedule fired"},
		workflow.AppEvent:           &TriggerExecutor{Delay: delay, Message: "App event received"},
		workflow.FormSubmission:     &TriggerExecutor{Delay: delay, Message: "Form submission received"},
		workflow.ExecutedByWorkflow: &TriggerExecutor{Delay: delay, Message: "Called by parent workflow"},
		workflow.ChatMessage:        &TriggerExecutor{Delay: delay, Message: "Chat message received"},
		workflow.Evaluation:         &TriggerExecutor{Delay: delay, Message: "Evaluation started"},
		workflow.Other:              &TriggerExecutor{Delay: delay, Message: "Step completed"},
		workflow.TelegramGetChat:    &TelegramExecutor{Delay: delay},
		workflow.EmailSend:          &EmailExecutor{Delay: delay},
		workflow.Webhook:            &WebhookExecutor{Delay: delay, Client: client},
	}
	for t, ex := range r {
		r[t] = WithTimeout(ex, opts.Timeout)
	}
	return r
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerExecutor handles nodes whose work is simulated by a bounded delay.
type TriggerExecutor struct {
	Delay   time.Duration
	Message string
}

func (e *TriggerExecutor) Run(ctx context.Context, node workflow.Node, _ *workflow.CredentialRef) (Output, error) {
	if err := sleep(ctx, e.Delay); err != nil {
		return nil, err
	}
	return Output{"message": e.Message, "nodeType": string(node.Type)}, nil
}

var chatIDPattern = regexp.MustCompile(`^-?\d+$`)

// TelegramExecutor resolves chat details for telegramGetChat nodes.
type TelegramExecutor struct {
	Delay time.Duration
}

func (e *TelegramExecutor) Run(ctx context.Context, node workflow.Node, cred *workflow.CredentialRef) (Output, error) {
	cfg, ok := node.Config.(workflow.TelegramGetChatConfig)
	if !ok {
		return nil, fmt.Errorf("unexpected config %T", node.Config)
	}
	if cred == nil {
		return nil, errors.New("telegram credential is required")
	}
	if !chatIDPattern.MatchString(cfg.ChatID) {
		return nil, fmt.Errorf("invalid chat id %q", cfg.ChatID)
	}
	if err := sleep(ctx, e.Delay); err != nil {
		return nil, err
	}

	chatType := "private"
	if strings.HasPrefix(cfg.ChatID, "-100") {
		chatType = "supergroup"
	} else if strings.HasPrefix(cfg.ChatID, "-") {
		chatType = "group"
	}
	return Output{
		"message": fmt.Sprintf("Fetched chat %s using %s", cfg.ChatID, cred.Name),
		"chat":    map[string]any{"id": cfg.ChatID, "type": chatType},
	}, nil
}

// EmailExecutor drafts the message of emailSend nodes.
type EmailExecutor struct {
	Delay time.Duration
}

func (e *EmailExecutor) Run(ctx context.Context, node workflow.Node, cred *workflow.CredentialRef) (Output, error) {
	cfg, ok := node.Config.(workflow.EmailSendConfig)
	if !ok {
		return nil, fmt.Errorf("unexpected config %T", node.Config)
	}
	if cred == nil {
		return nil, errors.New("email credential is required")
	}
	recipients, err := mail.ParseAddressList(cfg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", cfg.To, err)
	}
	if err := sleep(ctx, e.Delay); err != nil {
		return nil, err
	}

	to := make([]string, len(recipients))
	for i, addr := range recipients {
		to[i] = addr.Address
	}
	replacer := strings.NewReplacer("{{nodeId}}", node.ID, "{{label}}", node.DisplayName())
	draft := map[string]any{
		"to":        to,
		"from":      cred.Name,
		"subject":   replacer.Replace(cfg.Subject),
		"body":      replacer.Replace(cfg.Body),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	return Output{
		"message":    fmt.Sprintf("Email drafted for %s", strings.Join(to, ", ")),
		"emailDraft": draft,
	}, nil
}

// WebhookExecutor calls the configured URL. Without a URL the node acts as
// an inbound trigger and only simulates latency.
type WebhookExecutor struct {
	Delay  time.Duration
	Client *http.Client
}

func (e *WebhookExecutor) Run(ctx context.Context, node workflow.Node, _ *workflow.CredentialRef) (Output, error) {
	cfg, ok := node.Config.(workflow.WebhookConfig)
	if !ok {
		return nil, fmt.Errorf("unexpected config %T", node.Config)
	}
	if cfg.URL == "" {
		if err := sleep(ctx, e.Delay); err != nil {
			return nil, err
		}
		return Output{"message": fmt.Sprintf("Webhook %s %s received", cfg.Method, cfg.Path)}, nil
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return Output{
		"message":    fmt.Sprintf("Webhook %s %s returned %d", method, cfg.URL, resp.StatusCode),
		"statusCode": resp.StatusCode,
	}, nil
}
