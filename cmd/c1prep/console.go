package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

// console reads answers line by line and prints prompts.
type console struct {
	in  *bufio.Scanner
	out io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &console{in: s, out: out}
}

// ask prints label and reads one trimmed line. ok is false at end of input.
func (c *console) ask(label string) (string, bool) {
	if label != "" {
		fmt.Fprint(c.out, label)
	}
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// readBlock reads lines until a line holding only "." or a command
// starting with ":". It returns the text and the command, if any.
func (c *console) readBlock() (text, command string, ok bool) {
	var lines []string
	for c.in.Scan() {
		line := c.in.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "." {
			return strings.Join(lines, "\n"), "", true
		}
		if strings.HasPrefix(trimmed, ":") {
			return strings.Join(lines, "\n"), trimmed, true
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), "", len(lines) > 0
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) println(args ...any) {
	fmt.Fprintln(c.out, args...)
}

func (c *console) heading(title string) {
	c.println()
	c.println(title)
	c.println(strings.Repeat("=", len([]rune(title))))
}
