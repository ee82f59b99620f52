package cli_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dictcache/internal/cli"
)

func Test_Build_Writes_Every_Dictionary_When_No_Name_Given(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stdout := c.MustRun("build")

	cli.AssertContains(t, stdout, "main\t"+c.DictPath("main")+"\tunigrams=5 bigrams=1")
	cli.AssertContains(t, stdout, "history\t"+c.DictPath("history")+"\tunigrams=0 bigrams=0")

	require.FileExists(t, c.DictPath("main"))
	require.FileExists(t, c.DictPath("history"))
}

func Test_Build_Fails_When_Dictionary_Is_Not_Configured(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stderr := c.MustFail("build", "nope")

	cli.AssertContains(t, stderr, "dictionary not found: nope")
}

func Test_Build_Fails_When_Nothing_Is_Configured(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("build")

	cli.AssertContains(t, stderr, "no dictionaries configured")
}

func Test_Build_Reports_Syntax_Error_When_Word_List_Is_Malformed(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	c.WriteFile("words.tsv", "w\thello\tlots\n")

	stderr := c.MustFail("build", "main")

	cli.AssertContains(t, stderr, "dictionary failed to sync")
	cli.AssertContains(t, stderr, "line 1")
}

func Test_Check_Fails_When_File_Was_Never_Built(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stderr := c.MustFail("check", "main")

	cli.AssertContains(t, stderr, "dictionary file does not exist")
}

func Test_Check_Passes_When_File_Is_Built(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	c.MustRun("build", "main")

	stdout := c.MustRun("check", "main")
	cli.AssertContains(t, stdout, "main: ok (version 1, 5 unigrams, 1 bigrams)")
}

func Test_Build_Repairs_File_When_It_Is_Corrupt(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	c.MustRun("build", "main")

	require.NoError(t, os.WriteFile(c.DictPath("main"), []byte("garbage"), 0o600))

	stderr := c.MustFail("check", "main")
	cli.AssertContains(t, stderr, "corrupt")

	c.MustRun("build", "main")
	c.MustRun("check", "main")
}

func Test_Build_Force_Keeps_History_When_Dictionary_Is_Updatable(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	c.MustRun("add", "history", "kitten")
	c.MustRun("build", "--force")

	require.Equal(t, "valid", c.MustRun("lookup", "history", "kitten"))
	c.MustRun("check", "main")
}

func Test_Info_Prints_File_Details_When_Dictionary_Exists(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stdout := c.MustRun("info", "main")

	cli.AssertContains(t, stdout, "name=main")
	cli.AssertContains(t, stdout, "path="+c.DictPath("main"))
	cli.AssertContains(t, stdout, "locale=en")
	cli.AssertContains(t, stdout, "unigrams=5")
	cli.AssertContains(t, stdout, "updatable=false")
}

func Test_Lookup_Reports_Valid_When_Word_Or_Pair_Exists(t *testing.T) {
	t.Parallel()

	c := newProject(t)

	require.Equal(t, "valid", c.MustRun("lookup", "main", "hello"))
	require.Equal(t, "valid", c.MustRun("lookup", "main", "hello", "world"))
}

func Test_Lookup_Reports_Invalid_When_Word_Is_Missing(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stdout, stderr, code := c.Run("lookup", "main", "goodbye")

	require.Equal(t, 1, code)
	require.Equal(t, "invalid", strings.TrimSpace(stdout))
	cli.AssertContains(t, stderr, "warning: not found")

	stdout, _, code = c.Run("lookup", "main", "world", "hello")
	require.Equal(t, 1, code)
	require.Equal(t, "invalid", strings.TrimSpace(stdout))
}

func Test_Suggest_Ranks_By_Frequency_When_Prefix_Given(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stdout := c.MustRun("suggest", "main", "he")

	require.Equal(t, "hello\t100\tunigram\nhelp\t50\tunigram\nhero\t0\tunigram", stdout)
}

func Test_Suggest_Skips_Offensive_When_Blocked(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stdout := c.MustRun("suggest", "main", "he", "--block-offensive", "--limit", "5")

	cli.AssertNotContains(t, stdout, "hero")
	cli.AssertContains(t, stdout, "help")
}

func Test_Suggest_Puts_Bigrams_First_When_Previous_Word_Given(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stdout := c.MustRun("suggest", "main", "--prev", "hello")

	lines := strings.Split(stdout, "\n")
	require.Equal(t, "world\t5\tbigram", lines[0])
	require.Len(t, lines, 5, "each word once")
}

func Test_Suggest_Includes_Shortcut_Target_When_Word_Has_One(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stdout := c.MustRun("suggest", "main", "hi")

	require.Equal(t, "hello\t10\tshortcut\nhi\t10\tunigram", stdout)
}

func Test_Add_Persists_Word_When_Dictionary_Is_Updatable(t *testing.T) {
	t.Parallel()

	c := newProject(t)

	stdout := c.MustRun("add", "history", "kitten", "--freq", "7")
	require.Equal(t, "history: unigrams=1 bigrams=0", stdout)

	stdout = c.MustRun("add", "history", "cat", "--prev", "kitten")
	require.Equal(t, "history: unigrams=2 bigrams=1", stdout)

	require.Equal(t, "valid", c.MustRun("lookup", "history", "kitten"))
	require.Equal(t, "valid", c.MustRun("lookup", "history", "kitten", "cat"))

	stdout = c.MustRun("suggest", "history", "--prev", "kitten")
	cli.AssertContains(t, stdout, "cat\t1\tbigram")
}

func Test_Add_Fails_When_Dictionary_Is_Not_Updatable(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stderr := c.MustFail("add", "main", "kitten")

	cli.AssertContains(t, stderr, "not updatable")
}

func Test_Remove_Bigram_Persists_When_Pair_Exists(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	c.MustRun("add", "history", "cat", "--prev", "kitten")
	c.MustRun("add", "history", "kitten")

	require.Equal(t, "valid", c.MustRun("lookup", "history", "kitten", "cat"))

	stdout := c.MustRun("remove-bigram", "history", "kitten", "cat")
	require.Equal(t, "history: unigrams=2 bigrams=0", stdout)

	_, _, code := c.Run("lookup", "history", "kitten", "cat")
	require.Equal(t, 1, code)
}

func Test_Export_Prints_Word_List_When_Dictionary_Exists(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	stdout := c.MustRun("export", "main")

	want := strings.Join([]string{
		"w\thello\t100",
		"w\thelp\t50",
		"w\thero\t0",
		"w\thi\t10\thello",
		"w\tworld\t80",
		"b\thello\tworld\t5",
	}, "\n")

	require.Equal(t, want, stdout)
}

func Test_Export_Round_Trips_When_Output_Is_Used_As_Source(t *testing.T) {
	t.Parallel()

	c := newProject(t)
	exported := c.MustRun("export", "main")

	c.WriteFile(".dictctl.json", `{"dictionaries": [{"name": "copy", "source": "copy.tsv"}]}`)
	c.WriteFile("copy.tsv", exported+"\n")

	require.Equal(t, exported, c.MustRun("export", "copy"))
}
