package cli_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/agent-cards/internal/cli"
)

func Test_Bar_Applies_Requests_To_The_Card_It_Opened(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	input := strings.Join([]string{"where", "1", "where", "/consider", "exit", "/do"}, "\n") + "\n"

	stdout, stderr, code := c.RunWithInput(input, "bar")
	require.Equal(t, 0, code, stderr)

	cli.AssertContains(t, stdout, "Hi Jason.")
	cli.AssertContains(t, stdout, "not seeing cards")
	cli.AssertContains(t, stdout, "open /cards/1")
	cli.AssertContains(t, stdout, "inside a card")
	cli.AssertContains(t, stdout, "Move card #1 to Considering")
	cli.AssertNotContains(t, stdout, "to Doing")
	cli.AssertContains(t, stderr, "cards #1> ")

	cli.AssertContains(t, c.MustRun("ls", "--card", "1"), "[considering]")
}

func Test_Bar_Keeps_Going_After_A_Failed_Request_And_Undoes(t *testing.T) {
	t.Parallel()

	c := seeded(t, map[string]string{
		"bugs": `{"context": {"tag_ids": ["bug"]}}`,
	})

	stdout, stderr, code := c.RunWithInput("/close\nbugs\n/do\n", "bar")
	require.Equal(t, 0, code, stderr)

	cli.AssertContains(t, stderr, "error: the action could not be completed: no cards selected")
	cli.AssertContains(t, stdout, "open /cards?tag_ids%5B%5D=bug")
	cli.AssertContains(t, stdout, "Move matching cards to Doing")

	lines := strings.Split(c.MustRun("log"), "\n")
	require.Len(t, lines, 2)

	id, _, _ := strings.Cut(lines[0], " ")

	stdout, stderr, code = c.RunWithInput("undo "+id+"\nlog\n", "bar")
	require.Equal(t, 0, code, stderr)
	cli.AssertContains(t, stdout, "undone "+id)
	cli.AssertContains(t, stdout, "undone    Move matching cards to Doing")
}

func Test_Bar_Declines_Confirmation_When_Answer_Is_Not_Yes(t *testing.T) {
	t.Parallel()

	c := seeded(t, map[string]string{
		"open cards": `{"context": {"collection_ids": ["Writebook"]}}`,
	})

	stdout, stderr, code := c.RunWithInput("open cards\n/close\nnope\n", "bar")
	require.Equal(t, 0, code, stderr)

	cli.AssertContains(t, stderr, "Close matching cards? [y/N] ")
	cli.AssertContains(t, stderr, "command not confirmed")
	cli.AssertNotContains(t, stdout, "changed")
}

func Test_Bar_Starts_On_The_Screen_Given_By_View(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	stdout, stderr, code := c.RunWithInput("where\n/do\n", "bar", "--view", "card:3")
	require.Equal(t, 0, code, stderr)

	cli.AssertContains(t, stderr, "cards #3> ")
	cli.AssertContains(t, stdout, "inside a card")
	cli.AssertContains(t, stdout, "Move card #3 to Doing")
	cli.AssertContains(t, c.MustFail("bar", "--view", "nowhere"), "invalid --view")
}
