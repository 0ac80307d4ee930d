package credential

import (
	"context"
	"slices"
	"strings"
	"sync"

	"workflow-builder/api/services/identity"
	"workflow-builder/api/services/workflow"
)

// Credential kinds requested by node templates.
const (
	KindTelegram = "telegram"
	KindEmail    = "email"
	KindSlack    = "slack"
	KindDiscord  = "discord"
	KindTwilio   = "twilio"
	KindWebhook  = "webhook"
)

// providers maps each kind to the vault providers that satisfy it.
var providers = map[string][]string{
	KindTelegram: {"Telegram"},
	KindEmail:    {"Gmail"},
	KindSlack:    {"Slack"},
	KindDiscord:  {"Discord"},
	KindTwilio:   {"Twilio"},
	KindWebhook:  {"Webhook"},
}

// Providers returns the providers that satisfy kind, or nil for an unknown kind.
func Providers(kind string) []string {
	return slices.Clone(providers[strings.ToLower(kind)])
}

// Satisfies reports whether a credential from provider can be used for kind.
func Satisfies(provider, kind string) bool {
	for _, p := range providers[strings.ToLower(kind)] {
		if strings.EqualFold(p, provider) {
			return true
		}
	}
	return false
}

// KindsOf returns the kinds a provider's credentials satisfy, sorted.
func KindsOf(provider string) []string {
	var kinds []string
	for kind := range providers {
		if Satisfies(provider, kind) {
			kinds = append(kinds, kind)
		}
	}
	slices.Sort(kinds)
	return kinds
}

// Vault looks up credentials available to the principal in ctx.
type Vault interface {
	Lookup(ctx context.Context, kind string) ([]workflow.CredentialRef, error)
}

// Entry is a credential held by a StaticVault. An empty Owner shares the
// credential with every principal.
type Entry struct {
	Owner string
	Ref   workflow.CredentialRef
}

// StaticVault is an in-memory Vault for local runs and tests.
type StaticVault struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewStaticVault(entries ...Entry) *StaticVault {
	return &StaticVault{entries: slices.Clone(entries)}
}

// Add registers another credential.
func (v *StaticVault) Add(e Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = append(v.entries, e)
}

// Lookup returns the credentials of kind visible to the caller, in
// registration order. Without a principal only shared entries are visible.
func (v *StaticVault) Lookup(ctx context.Context, kind string) ([]workflow.CredentialRef, error) {
	var owner string
	if p, err := identity.FromContext(ctx); err == nil {
		owner = p.UserID
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []workflow.CredentialRef
	for _, e := range v.entries {
		if e.Owner != "" && e.Owner != owner {
			continue
		}
		if Satisfies(e.Ref.Provider, kind) {
			out = append(out, e.Ref)
		}
	}
	return out, nil
}
