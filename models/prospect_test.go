package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to ProspectStatus }{
		{StatusNew, StatusActive},
		{StatusNew, StatusUnsubscribed},
		{StatusActive, StatusActive},
		{StatusActive, StatusPausedAwaitingWebhook},
		{StatusActive, StatusPausedManualReview},
		{StatusActive, StatusReplied},
		{StatusActive, StatusCompleted},
		{StatusActive, StatusUnsubscribed},
		{StatusPausedAwaitingWebhook, StatusActive},
		{StatusPausedAwaitingWebhook, StatusPausedManualReview},
		{StatusPausedAwaitingWebhook, StatusCompleted},
		{StatusPausedAwaitingWebhook, StatusUnsubscribed},
		{StatusPausedManualReview, StatusActive},
		{StatusPausedManualReview, StatusUnsubscribed},
	}
	for _, tc := range allowed {
		require.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	denied := []struct{ from, to ProspectStatus }{
		{StatusNew, StatusPausedManualReview},
		{StatusNew, StatusReplied},
		{StatusPausedAwaitingWebhook, StatusReplied},
		{StatusPausedManualReview, StatusReplied},
		{StatusPausedManualReview, StatusCompleted},
		{StatusReplied, StatusActive},
		{StatusCompleted, StatusActive},
		{StatusUnsubscribed, StatusActive},
		{StatusUnsubscribed, StatusNew},
	}
	for _, tc := range denied {
		require.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	require.True(t, StatusReplied.Terminal())
	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusUnsubscribed.Terminal())

	require.False(t, StatusNew.Terminal())
	require.False(t, StatusActive.Terminal())
	require.False(t, StatusPausedAwaitingWebhook.Terminal())
	require.False(t, StatusPausedManualReview.Terminal())
}

func TestAgentIDPerAction(t *testing.T) {
	p := &Persona{
		AgentViewID:    "agent-view",
		AgentConnectID: "agent-connect",
		AgentMessageID: "agent-message",
	}
	require.Equal(t, "agent-view", p.AgentID(ActionViewProfile))
	require.Equal(t, "agent-connect", p.AgentID(ActionSendConnect))
	require.Equal(t, "agent-message", p.AgentID(ActionSendMessage))
	require.Empty(t, p.AgentID(ActionSendEmail))
}

func TestActionChannelValidity(t *testing.T) {
	require.True(t, ActionSendEmail.ValidFor(ChannelEmail))
	require.False(t, ActionSendEmail.ValidFor(ChannelLinkedIn))

	for _, a := range []StepAction{ActionViewProfile, ActionSendConnect, ActionSendMessage} {
		require.True(t, a.ValidFor(ChannelLinkedIn))
		require.False(t, a.ValidFor(ChannelEmail))
	}

	require.True(t, ActionSendConnect.NeedsMessage())
	require.True(t, ActionSendMessage.NeedsMessage())
	require.False(t, ActionViewProfile.NeedsMessage())
	require.False(t, ActionSendEmail.NeedsMessage())
}
