package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaultIsClaude(t *testing.T) {
	spec, err := Resolve("", "")
	require.NoError(t, err)
	assert.Equal(t, KindClaude, spec.Kind)
	assert.Equal(t, []string{"claude"}, spec.Command)
}

func TestResolveKnownBackends(t *testing.T) {
	spec, err := Resolve("claude", "")
	require.NoError(t, err)
	assert.Equal(t, KindClaude, spec.Kind)

	spec, err = Resolve("opencode", "")
	require.NoError(t, err)
	assert.Equal(t, KindOpenCode, spec.Kind)
}

func TestResolveUnknownNameIsError(t *testing.T) {
	_, err := Resolve("cursor", "")
	assert.ErrorIs(t, err, ErrInvalidExecutor)
}

func TestResolveOverrideBypassesValidation(t *testing.T) {
	// The override wins even alongside an invalid name.
	spec, err := Resolve("not-a-backend", "my-agent --fast")
	require.NoError(t, err)
	assert.Equal(t, KindCustom, spec.Kind)
	assert.Equal(t, []string{"my-agent", "--fast"}, spec.Command)
}

func TestResolveBlankOverrideIsError(t *testing.T) {
	_, err := Resolve("", "   ")
	assert.ErrorIs(t, err, ErrInvalidExecutor)
}

func TestArgvClaudeHeadlessStreamed(t *testing.T) {
	spec := Spec{Kind: KindClaude, Command: []string{"claude"}, Model: "sonnet", Headless: true, Streamed: true}
	argv := spec.Argv("do the thing")
	assert.Equal(t, []string{
		"claude", "--print", "--dangerously-skip-permissions",
		"--model", "sonnet",
		"--output-format", "stream-json", "--verbose",
		"do the thing",
	}, argv)
}

func TestArgvClaudeInteractiveOmitsHeadlessFlags(t *testing.T) {
	spec := Spec{Kind: KindClaude, Command: []string{"claude"}}
	argv := spec.Argv("talk to me")
	assert.Equal(t, []string{"claude", "talk to me"}, argv)
}

func TestArgvOpenCodeHeadlessUsesRunSubcommand(t *testing.T) {
	spec := Spec{Kind: KindOpenCode, Command: []string{"opencode"}, Headless: true}
	argv := spec.Argv("p")
	assert.Equal(t, []string{"opencode", "run", "p"}, argv)
}

func TestArgvCustomGetsNoInjectedFlags(t *testing.T) {
	spec := Spec{Kind: KindCustom, Command: []string{"my-agent", "--fast"}, Model: "ignored", Headless: true, Streamed: true}
	argv := spec.Argv("p")
	assert.Equal(t, []string{"my-agent", "--fast", "p"}, argv)
}

func TestArgvPromptIsAlwaysLast(t *testing.T) {
	for _, spec := range []Spec{
		{Kind: KindClaude, Command: []string{"claude"}, Headless: true, Streamed: true},
		{Kind: KindOpenCode, Command: []string{"opencode"}, Headless: true},
		{Kind: KindCustom, Command: []string{"x", "y"}},
	} {
		argv := spec.Argv("THE PROMPT")
		assert.Equal(t, "THE PROMPT", argv[len(argv)-1], "kind %s", spec.Kind)
	}
}

func TestArgvDoesNotMutateCommand(t *testing.T) {
	base := []string{"claude"}
	spec := Spec{Kind: KindClaude, Command: base, Headless: true}
	_ = spec.Argv("a")
	_ = spec.Argv("b")
	assert.Equal(t, []string{"claude"}, base)
}
