package credential

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-builder/api/services/identity"
	"workflow-builder/api/services/workflow"
)

func TestSatisfies(t *testing.T) {
	assert.True(t, Satisfies("Telegram", KindTelegram))
	assert.True(t, Satisfies("gmail", "EMAIL"))
	assert.False(t, Satisfies("Slack", KindTelegram))
	assert.False(t, Satisfies("Telegram", "fax"))
	assert.Nil(t, Providers("fax"))
}

func TestKindsOf(t *testing.T) {
	assert.Equal(t, []string{KindTelegram}, KindsOf("telegram"))
	assert.Equal(t, []string{KindEmail}, KindsOf("Gmail"))
	assert.Empty(t, KindsOf("Fax"))
}

func TestStaticVault_Lookup(t *testing.T) {
	shared := workflow.CredentialRef{ID: "c1", Name: "Team bot", Provider: "Telegram"}
	mine := workflow.CredentialRef{ID: "c2", Name: "My bot", Provider: "Telegram"}
	theirs := workflow.CredentialRef{ID: "c3", Name: "Their bot", Provider: "Telegram"}
	mail := workflow.CredentialRef{ID: "c4", Name: "Work Gmail", Provider: "Gmail"}

	vault := NewStaticVault(
		Entry{Ref: shared},
		Entry{Owner: "alice", Ref: mine},
		Entry{Owner: "bob", Ref: theirs},
	)
	vault.Add(Entry{Owner: "alice", Ref: mail})

	ctx := identity.WithPrincipal(context.Background(), identity.Principal{UserID: "alice"})

	got, err := vault.Lookup(ctx, KindTelegram)
	require.NoError(t, err)
	assert.Equal(t, []workflow.CredentialRef{shared, mine}, got)

	got, err = vault.Lookup(ctx, KindEmail)
	require.NoError(t, err)
	assert.Equal(t, []workflow.CredentialRef{mail}, got)

	got, err = vault.Lookup(context.Background(), KindTelegram)
	require.NoError(t, err)
	assert.Equal(t, []workflow.CredentialRef{shared}, got)

	got, err = vault.Lookup(ctx, KindSlack)
	require.NoError(t, err)
	assert.Empty(t, got)
}
