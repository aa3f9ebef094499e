package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Sink is the line-oriented user-facing output. Progress lines overwrite
// each other; every other message is appended on its own line.
type Sink interface {
	Progress(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type Console struct {
	out        io.Writer
	inProgress bool
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Progress(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "\r%s", fmt.Sprintf(format, args...))
	c.inProgress = true
}

func (c *Console) Info(format string, args ...interface{}) {
	c.line("", format, args...)
}

func (c *Console) Warn(format string, args ...interface{}) {
	c.line("Warning: ", format, args...)
}

func (c *Console) Error(format string, args ...interface{}) {
	c.line("Error: ", format, args...)
}

func (c *Console) line(prefix, format string, args ...interface{}) {
	if c.inProgress {
		fmt.Fprintln(c.out)
		c.inProgress = false
	}
	fmt.Fprintf(c.out, "%s%s\n", prefix, fmt.Sprintf(format, args...))
}

// Prompt asks for a typed confirmation on in.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

// Confirm prints message and returns true only when the answer is "yes",
// in any letter case. A closed input counts as a refusal.
func (p *Prompt) Confirm(message string) (bool, error) {
	fmt.Fprintf(p.out, "%s\nType 'yes' to confirm: ", message)

	answer, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	return strings.EqualFold(strings.TrimSpace(answer), "yes"), nil
}
