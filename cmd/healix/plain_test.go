package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"healix/internal/tui"
)

type echoConversation struct {
	asked  []string
	resets int
}

func (e *echoConversation) Ask(_ context.Context, q string) string {
	e.asked = append(e.asked, q)
	return "echo: " + q
}

func (e *echoConversation) Reset() { e.resets++ }

func TestRunPlainHandlesCommands(t *testing.T) {
	conv := &echoConversation{}
	var out bytes.Buffer
	in := strings.NewReader("What is A1C?\n\nc\nquit\nnever asked\n")

	require.NoError(t, runPlain(context.Background(), in, &out, conv))
	require.Equal(t, []string{"What is A1C?"}, conv.asked)
	require.Equal(t, 1, conv.resets)
	require.Contains(t, out.String(), tui.Greeting)
	require.Contains(t, out.String(), "HealixAI: echo: What is A1C?")
	require.Contains(t, out.String(), tui.Cleared)
	require.True(t, strings.HasSuffix(strings.TrimSpace(out.String()), tui.Goodbye))
}

func TestRunPlainStopsAtEOF(t *testing.T) {
	conv := &echoConversation{}
	var out bytes.Buffer
	require.NoError(t, runPlain(context.Background(), strings.NewReader("hello"), &out, conv))
	require.Equal(t, []string{"hello"}, conv.asked)
}
