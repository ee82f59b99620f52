package cli_test

import (
	"bytes"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dictcache/internal/cli"
	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

func Test_Repl_Answers_Queries_When_Input_Is_Piped(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	input := strings.Join([]string{
		"valid hello",
		"valid goodbye",
		"pair hello world",
		"suggest he",
		"# comment",
		"bogus",
		"quit",
		"valid never-reached",
	}, "\n")

	stdout, stderr, code := c.RunWithInput(input, "repl", "main")
	require.Equal(t, 0, code, stderr)

	want := strings.Join([]string{
		"true",
		"false",
		"true",
		"hello\t100\tunigram",
		"help\t50\tunigram",
		"hero\t0\tunigram",
	}, "\n")

	cli.AssertContains(t, stdout, want)
	cli.AssertContains(t, stdout, "unknown command: bogus")
	require.Equal(t, 3, strings.Count(stdout, "true")+strings.Count(stdout, "false"))
}

func Test_Repl_Saves_Words_When_Dictionary_Is_Updatable(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	input := "add kitten 3\nadd\nsave\nvalid kitten\n"

	stdout, stderr, code := c.RunWithInput(input, "repl", "history")
	require.Equal(t, 0, code, stderr)

	require.Equal(t, "ok\nerror: wrong number of arguments: add <word> [freq]\nsaved\ntrue", strings.TrimSpace(stdout))
	require.Equal(t, "valid", c.MustRun("lookup", "history", "kitten"))
}

func Test_Repl_Drops_Mutation_When_Dictionary_Is_Not_Updatable(t *testing.T) {
	t.Parallel()

	c := newProject(t)

	stdout, _, code := c.RunWithInput("add kitten\nsave\n", "repl", "main")
	require.Equal(t, 0, code)

	cli.AssertContains(t, stdout, "dropped")
	cli.AssertContains(t, stdout, "error: main is not updatable")
}

func Test_Stress_Reports_Totals_When_Run_Briefly(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stdout := c.MustRun("stress", "history", "--duration", "200ms", "--instances", "2", "--metrics")

	cli.AssertContains(t, stdout, "lookups=")
	cli.AssertContains(t, stdout, "mutations accepted=")
	cli.AssertContains(t, stdout, "# TYPE dictionary_rebuilds_total counter")
	cli.AssertContains(t, stdout, `dictionary_rebuilds_total{dict_type="user",reason="missing"} 1`)
	cli.AssertContains(t, stdout, `dictionary_rebuild_duration_seconds_bucket{dict_type="user",le="+Inf"}`)
	cli.AssertContains(t, stdout, `dictionary_rebuild_duration_seconds_sum{dict_type="user"}`)

	c.MustRun("check", "history")
}

func Test_Stress_Fails_When_Options_Are_Invalid(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stderr := c.MustFail("stress", "main", "--instances", "0")

	cli.AssertContains(t, stderr, "invalid option")
}

// startWatch runs "dictctl watch" in the background until the returned
// stop function sends SIGTERM. stop returns stdout once the command exits.
func startWatch(t *testing.T, c *cli.CLI) (stop func() string) {
	t.Helper()

	var out, errOut bytes.Buffer

	sigCh := make(chan os.Signal, 1)
	done := make(chan int)

	go func() {
		done <- cli.Run(nil, &out, &errOut, []string{"dictctl", "--cwd", c.Dir, "--log-level", "none", "watch"}, c.Env, sigCh)
	}()

	return func() string {
		t.Helper()

		sigCh <- syscall.SIGTERM

		select {
		case code := <-done:
			require.Equal(t, 0, code, errOut.String())
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not stop after signal")
		}

		return out.String()
	}
}

// waitForWord polls the dictionary file of name until it holds word.
func waitForWord(t *testing.T, c *cli.CLI, name, word string) {
	t.Helper()

	require.Eventually(t, func() bool {
		snap, err := dictfile.Open(c.DictPath(name), 0, 0, dictfile.Options{})
		if err != nil {
			return false
		}

		defer func() { _ = snap.Close() }()

		return snap.IsValidWord(word)
	}, 5*time.Second, 20*time.Millisecond)
}

func Test_Watch_Rebuilds_Dictionary_When_Word_List_Changes(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	c.WriteFile(".dictctl.json", `{
		"watch_debounce": "50ms",
		"dictionaries": [{"name": "main", "source": "words.tsv"}],
	}`)

	stop := startWatch(t, c)

	waitForWord(t, c, "main", "hello")

	// Let the watcher start after the initial build.
	time.Sleep(300 * time.Millisecond)

	c.WriteFile("words.tsv", testWords+"w\tzebra\t1\n")

	waitForWord(t, c, "main", "zebra")

	out := stop()

	cli.AssertContains(t, out, "watching 1 dictionaries")
	cli.AssertContains(t, out, "rebuilt main unigrams=6 bigrams=1")
}

func Test_Watch_Rebuilds_Every_Dictionary_When_They_Share_A_Word_List(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	c.WriteFile(".dictctl.json", `{
		"watch_debounce": "50ms",
		"dictionaries": [
			{"name": "main", "source": "words.tsv"},
			{"name": "mirror", "source": "words.tsv"},
		],
	}`)

	stop := startWatch(t, c)

	waitForWord(t, c, "main", "hello")
	waitForWord(t, c, "mirror", "hello")

	time.Sleep(300 * time.Millisecond)

	c.WriteFile("words.tsv", testWords+"w\tzebra\t1\n")

	waitForWord(t, c, "main", "zebra")
	waitForWord(t, c, "mirror", "zebra")

	out := stop()

	cli.AssertContains(t, out, "watching 2 dictionaries")
	cli.AssertContains(t, out, "rebuilt main unigrams=6 bigrams=1")
	cli.AssertContains(t, out, "rebuilt mirror unigrams=6 bigrams=1")
}

func Test_Watch_Fails_When_No_Word_Lists_Are_Configured(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stderr := c.MustFail("watch", "history")

	cli.AssertContains(t, stderr, "no word list dictionaries to watch")
}
