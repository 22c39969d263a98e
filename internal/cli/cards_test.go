package cli_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/agent-cards/internal/cli"
	"github.com/calvinalkan/agent-cards/internal/testutil"
	"github.com/calvinalkan/agent-cards/internal/translate"
)

// seeded returns a CLI over the shared fixture, acting as jz, with a chat
// that knows replies.
func seeded(t *testing.T, replies map[string]string) *cli.CLI {
	t.Helper()

	c := cli.NewCLI(t)
	c.Now = testutil.NewClock().Now
	c.Chat = testutil.NewChat(replies)
	c.Seed(testutil.Fixture)

	return c
}

// commandID is the id printed at the start of the first output line.
func commandID(t *testing.T, stdout string) string {
	t.Helper()

	first, _, _ := strings.Cut(stdout, "\n")
	id, _, ok := strings.Cut(first, " ")
	require.True(t, ok, "no command id in %q", stdout)

	return id
}

func Test_Seed_Reports_Counts_And_Rejects_Unknown_Fields(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("seed.jsonc", testutil.Fixture)

	stdout := c.MustRun("seed", "seed.jsonc")
	assert.Equal(t, "seeded 4 users, 3 collections, 6 cards", stdout)

	c.WriteFile("bad.jsonc", `{"users": [{"nick": "jz"}]}`)
	cli.AssertContains(t, c.MustFail("seed", "bad.jsonc"), "invalid seed data")

	cli.AssertContains(t, c.MustFail("seed"), "missing arguments")
}

func Test_Ls_Lists_Only_Accessible_Cards(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	stdout := c.MustRun("ls")
	cli.AssertContains(t, stdout, "#1     [doing] Fix login bug (Writebook / Build) @kevin #bug")
	cli.AssertContains(t, stdout, "Refund request (Help desk / Inbox) #billing")
	cli.AssertContains(t, stdout, "Old migration (Writebook)")
	cli.AssertNotContains(t, stdout, "Secret plan")
	assert.Len(t, strings.Split(stdout, "\n"), 5)
}

func Test_Ls_Applies_Filter_Flags(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"tag", []string{"--tag", "#bug"}, []string{"Fix login bug"}},
		{"unassigned open cards", []string{"--unassigned", "--collection", "Help desk"}, []string{"Refund request"}},
		{"assignee", []string{"--assignee", "jz"}, []string{"Design onboarding"}},
		{"term", []string{"--term", "charged"}, []string{"Refund request"}},
		{"closure implies closed", []string{"--closure", "last week"}, []string{"Ship release notes"}},
		{"stalled", []string{"--indexed-by", "stalled"}, []string{"Old migration"}},
		{"card ids", []string{"--card", "2,3", "--limit", "1"}, []string{"Design onboarding"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout := c.MustRun(append([]string{"ls"}, tt.args...)...)

			lines := strings.Split(stdout, "\n")
			require.Len(t, lines, len(tt.want), stdout)

			for i, title := range tt.want {
				cli.AssertContains(t, lines[i], title)
			}
		})
	}
}

func Test_Ls_Fails_When_Filter_Is_Invalid(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	cli.AssertContains(t, c.MustFail("ls", "--indexed-by", "random"), "invalid filter context")
	cli.AssertContains(t, c.MustFail("ls", "--creation", "someday"), "invalid filter context")
}

func Test_Ask_Closes_Card_And_Undo_Reopens_It(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	stdout := c.MustRun("ask", "--view", "card:3", "/close", "as", "duplicate")
	cli.AssertContains(t, stdout, "Close card #3 as 'duplicate'")
	cli.AssertContains(t, stdout, "changed #3")
	cli.AssertContains(t, c.MustRun("ls", "--card", "3"), "[closed] Refund request")

	id := commandID(t, stdout)

	stdout = c.MustRun("undo", id[:13])
	cli.AssertContains(t, stdout, "undone "+id)
	cli.AssertContains(t, c.MustRun("ls", "--card", "3"), "[considering] Refund request")

	stderr := c.MustFail("undo", id)
	cli.AssertContains(t, stderr, "the action could not be undone")
	cli.AssertContains(t, stderr, "command already undone")
}

func Test_Ask_Redirects_When_Translation_Yields_Only_A_Filter(t *testing.T) {
	t.Parallel()

	c := seeded(t, map[string]string{
		"cards assigned to kevin": `{"context": {"assignee_ids": ["kevin"]}}`,
	})

	stdout := c.MustRun("ask", "cards", "assigned", "to", "kevin")
	cli.AssertContains(t, stdout, "Filter cards")
	cli.AssertContains(t, stdout, "open /cards?assignee_ids%5B%5D=kevin")
}

func Test_Ask_Searches_When_Translation_Fails(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	stdout := c.MustRun("ask", "lost", "keys")
	cli.AssertContains(t, stdout, "open /search?q=lost+keys")
}

func Test_Ask_Runs_Translated_Commands_In_Order(t *testing.T) {
	t.Parallel()

	c := seeded(t, map[string]string{
		"tag it as urgent and assign to me": `{"commands": ["/tag #urgent", "/assign jz"]}`,
	})

	stdout := c.MustRun("ask", "--view", "card:1", "tag it as urgent and assign to me")

	tagAt := strings.Index(stdout, "Tag card #1 with #urgent")
	assignAt := strings.Index(stdout, "Assign card #1 to jz")
	require.GreaterOrEqual(t, tagAt, 0, stdout)
	require.Greater(t, assignAt, tagAt, stdout)

	cli.AssertContains(t, c.MustRun("ls", "--card", "1"), "@jz @kevin #bug #urgent")
}

func Test_Ask_Asks_Before_Closing_Many_Cards(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	stdout, stderr, code := c.RunWithInput("n\n", "ask", "--view", "list:tag_ids[]=bug&tag_ids[]=design", "/close")
	require.Equal(t, 1, code)
	assert.Empty(t, stdout)
	cli.AssertContains(t, stderr, "Close matching cards? [y/N]")
	cli.AssertContains(t, stderr, "command not confirmed")
	cli.AssertContains(t, c.MustRun("ls", "--card", "1"), "[doing]")

	stdout, _, code = c.RunWithInput("y\n", "ask", "--view", "list:tag_ids[]=bug&tag_ids[]=design", "/close")
	require.Equal(t, 0, code)
	cli.AssertContains(t, stdout, "changed #1 #2")

	// Once executed, the title counts the cards that actually moved: the two
	// just closed and the already closed #4.
	stdout = c.MustRun("ask", "--yes", "--view", "list", "/consider")
	cli.AssertContains(t, stdout, "Move 3 cards to Considering")
	cli.AssertContains(t, stdout, "changed #1 #2 #4")

	stdout = c.MustRun("ask", "--yes", "--view", "list", "/do")
	cli.AssertContains(t, stdout, "Move 5 cards to Doing")
	cli.AssertContains(t, strings.Split(c.MustRun("log"), "\n")[0], "Move 5 cards to Doing")
}

func Test_Ask_Answers_Questions_About_The_Card_In_View(t *testing.T) {
	t.Parallel()

	chat := testutil.NewChat(map[string]string{
		"what is blocking this?": "Nothing, Kevin is on it.",
	})

	c := seeded(t, nil)
	c.Chat = chat

	stdout := c.MustRun("ask", "--view", "card:1", "what is blocking this?")
	cli.AssertContains(t, stdout, "Insight query 'what is blocking this?'")
	cli.AssertContains(t, stdout, "  Nothing, Kevin is on it.")

	calls := chat.Calls()
	require.Len(t, calls, 1)
	cli.AssertContains(t, calls[0].Instructions, "Fix login bug")
}

func Test_Ask_Opens_Card_When_Input_Is_A_Number(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	cli.AssertContains(t, c.MustRun("ask", "2"), "open /cards/2")

	// jz cannot see card 6, so the number is searched for instead.
	cli.AssertContains(t, c.MustRun("ask", "6"), "open /search?q=6")
}

func Test_Ask_Fails_When_Request_Cannot_Run(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	cli.AssertContains(t, c.MustFail("ask", "/close"), "the action could not be completed: no cards selected")
	cli.AssertContains(t, c.MustFail("ask", "/dance"), "unknown command")
	cli.AssertContains(t, c.MustFail("ask", "--view", "card:x", "/do"), "invalid --view")
	cli.AssertContains(t, c.MustFail("ask"), "missing arguments")

	c.Env["CARDS_USER"] = "nobody"
	cli.AssertContains(t, c.MustFail("ask", "/clear"), "unknown user: nobody")

	delete(c.Env, "CARDS_USER")
	cli.AssertContains(t, c.MustFail("ask", "/clear"), "no user configured")
}

func Test_Log_Lists_Commands_Newest_First(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	c.MustRun("ask", "--view", "card:2", "/do")
	c.MustRun("ask", "/clear")

	lines := strings.Split(c.MustRun("log"), "\n")
	require.Len(t, lines, 2)
	cli.AssertContains(t, lines[0], "executed  Clear filters (no undo)")
	cli.AssertContains(t, lines[1], "executed  Move card #2 to Doing")

	require.Len(t, strings.Split(c.MustRun("log", "-n", "1"), "\n"), 1)
	cli.AssertContains(t, c.MustFail("log", "-n", "0"), "--limit must be positive")
}

func Test_Translate_Prints_Intent_Without_Executing(t *testing.T) {
	t.Parallel()

	c := seeded(t, map[string]string{
		"close the bug": `{"context": {"tag_ids": ["bug"]}, "commands": ["/close"]}`,
	})

	stdout := c.MustRun("translate", "close", "the", "bug")

	var intent translate.Intent
	require.NoError(t, json.Unmarshal([]byte(stdout), &intent))
	require.NotNil(t, intent.Context)
	assert.Equal(t, []string{"bug"}, intent.Context.TagIDs)
	assert.Equal(t, []string{"/close"}, intent.Commands)

	cli.AssertContains(t, c.MustRun("ls", "--card", "1"), "[doing]")
	assert.Empty(t, c.MustRun("log"))
}

func Test_Translate_Warns_When_Falling_Back_To_Search(t *testing.T) {
	t.Parallel()

	c := seeded(t, nil)

	stdout, stderr, code := c.Run("translate", "lost", "keys")
	require.Equal(t, 1, code)
	cli.AssertContains(t, stdout, `"/search lost keys"`)
	cli.AssertContains(t, stderr, "warning: request could not be translated")
}

func Test_Ask_Reuses_Store_Cache_Across_Runs_Unless_Memory_Backend(t *testing.T) {
	t.Parallel()

	chat := testutil.NewChat(map[string]string{
		"my cards": `{"context": {"assignee_ids": ["jz"]}}`,
	})

	c := seeded(t, nil)
	c.Chat = chat

	c.MustRun("ask", "my", "cards")
	c.MustRun("ask", "my", "cards")
	require.Len(t, chat.Calls(), 1)

	c.WriteFile(".cards.json", `{"cache": {"backend": "memory"}}`)

	c.MustRun("ask", "my", "cards")
	c.MustRun("ask", "my", "cards")
	require.Len(t, chat.Calls(), 3)
}
