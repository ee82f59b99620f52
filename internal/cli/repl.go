package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/dictcache/pkg/dictfile"
)

// ReplCmd returns the repl command.
func ReplCmd(a *app) *Command {
	return &Command{
		Usage: "repl <dict>",
		Short: "Interactive shell over one dictionary",
		Long: "Open a dictionary and read commands interactively. Type 'help' inside\n" +
			"the shell for the command list.",
		Args: ExactArgs(1),
		Exec: func(ctx context.Context, o *IO, args []string) error {
			h, err := a.openSynced(args[0])
			if err != nil {
				return err
			}

			defer func() { _ = h.Close() }()

			r := &repl{h: h, o: o}

			return r.run(ctx)
		},
	}
}

var errQuit = errors.New("quit")

// prompter reads one line per call. io.EOF ends the session.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// linePrompter reads plain lines, for piped input.
type linePrompter struct {
	sc *bufio.Scanner
}

func (p *linePrompter) Prompt(string) (string, error) {
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return p.sc.Text(), nil
}

func (p *linePrompter) AppendHistory(string) {}

func (p *linePrompter) Close() error { return nil }

// terminalPrompter wraps liner and keeps history across sessions.
type terminalPrompter struct {
	*liner.State
}

func newTerminalPrompter() *terminalPrompter {
	st := liner.NewLiner()
	st.SetCtrlCAborts(true)
	st.SetCompleter(completeCommand)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = st.ReadHistory(f)
		_ = f.Close()
	}

	return &terminalPrompter{State: st}
}

func (p *terminalPrompter) Prompt(prompt string) (string, error) {
	line, err := p.State.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}

	return line, err
}

func (p *terminalPrompter) Close() error {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = p.WriteHistory(f)
			_ = f.Close()
		}
	}

	return p.State.Close()
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".dictctl_history")
}

var replCommands = []string{
	"suggest", "valid", "pair", "add", "remove", "save",
	"reload", "info", "help", "exit", "quit", "q",
}

func completeCommand(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range replCommands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

type repl struct {
	h *handle
	o *IO
}

func (r *repl) run(ctx context.Context) error {
	var p prompter

	if f, ok := r.o.In().(*os.File); ok && f == os.Stdin {
		p = newTerminalPrompter()
	} else {
		in := r.o.In()
		if in == nil {
			in = strings.NewReader("")
		}

		p = &linePrompter{sc: bufio.NewScanner(in)}
	}

	defer func() { _ = p.Close() }()

	for ctx.Err() == nil {
		line, err := p.Prompt(r.h.conf.Name + "> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p.AppendHistory(line)

		err = r.exec(strings.Fields(line))
		if errors.Is(err, errQuit) {
			return nil
		}

		if err != nil {
			r.o.Println("error:", err)
		}
	}

	return nil
}

func (r *repl) exec(fields []string) error {
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "exit", "quit", "q":
		return errQuit

	case "help", "?":
		r.printHelp()

	case "suggest":
		q := dictfile.Query{}
		if len(args) > 0 {
			q.Prefix = args[0]
		}

		if len(args) > 1 {
			q.PrevWord = args[1]
		}

		printSuggestions(r.o, r.h.Suggestions(q))

	case "valid":
		if len(args) != 1 {
			return fmt.Errorf("%w: valid <word>", ErrArgCount)
		}

		r.o.Println(r.h.IsValidWord(args[0]))

	case "pair":
		if len(args) != 2 {
			return fmt.Errorf("%w: pair <prev> <word>", ErrArgCount)
		}

		r.o.Println(r.h.IsValidBigram(args[0], args[1]))

	case "add":
		return r.add(args)

	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("%w: remove <prev> <word>", ErrArgCount)
		}

		r.printAccepted(r.h.RemoveBigramDynamically(args[0], args[1]))

	case "save":
		if r.h.history == nil {
			return fmt.Errorf("%s is not updatable", r.h.conf.Name)
		}

		err := r.h.persist()
		if err != nil {
			return err
		}

		r.o.Println("saved")

	case "reload":
		r.h.MarkRequiresReload()
		r.h.SyncReloadIfRequired()

		if err := r.h.Err(); err != nil {
			return err
		}

		r.o.Println("reloaded")

	case "info":
		info, ok := r.h.Info()
		if !ok {
			return ErrSnapshotMissing
		}

		r.o.Printf("%s unigrams=%d bigrams=%d size=%d\n", info.Path, info.Unigrams, info.Bigrams, info.Size)

	default:
		r.o.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
	}

	return nil
}

func (r *repl) add(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: add <word> [freq]", ErrArgCount)
	}

	freq := 1

	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return fmt.Errorf("bad frequency %q", args[1])
		}

		freq = n
	}

	r.printAccepted(r.h.AddWordDynamically(args[0], "", freq, false))

	return nil
}

func (r *repl) printAccepted(ok bool) {
	if ok {
		r.o.Println("ok")
	} else {
		r.o.Println("dropped")
	}
}

func (r *repl) printHelp() {
	r.o.Println("Commands:")
	r.o.Println("  suggest [prefix] [prev]    List suggestions")
	r.o.Println("  valid <word>               Check a word")
	r.o.Println("  pair <prev> <word>         Check a bigram")
	r.o.Println("  add <word> [freq]          Add a word (updatable only)")
	r.o.Println("  remove <prev> <word>       Remove a bigram (updatable only)")
	r.o.Println("  save                       Write the dictionary file")
	r.o.Println("  reload                     Mark stale and sync")
	r.o.Println("  info                       Show file details")
	r.o.Println("  help                       Show this help")
	r.o.Println("  exit / quit / q            Exit")
}
