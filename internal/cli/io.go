package cli

import (
	"fmt"
	"io"
	"sync"
)

// IO handles command output with visible warnings.
//
// Methods are safe for concurrent use so that background callbacks (the
// watch command) can print alongside the command itself.
type IO struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	mu       sync.Mutex
	warnings []string
	started  bool
}

// NewIO creates a new IO instance.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// In returns the command input.
func (o *IO) In() io.Reader {
	return o.in
}

// Warn records a warning with the action the user should take.
//
// Warnings are printed to stderr at both the START and END of output,
// so they stay visible when output is piped through head or tail.
// Any warnings cause exit code 1.
func (o *IO) Warn(issue string, action string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.warnings = append(o.warnings, fmt.Sprintf("%s: %s", issue, action))
}

// Println writes to stdout. On first call, any collected warnings
// are printed to stderr first.
func (o *IO) Println(a ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.flushWarningsStart()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout. On first call, any collected
// warnings are printed to stderr first.
func (o *IO) Printf(format string, a ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.flushWarningsStart()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish prints warnings to stderr and returns exit code.
// Returns 1 if any warnings, 0 otherwise.
func (o *IO) Finish() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	// If no output happened but we have warnings, print them at "start" position
	o.flushWarningsStart()

	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}

func (o *IO) flushWarningsStart() {
	if !o.started && len(o.warnings) > 0 {
		for _, w := range o.warnings {
			_, _ = fmt.Fprintln(o.errOut, "warning:", w)
		}

		o.started = true
	}
}
