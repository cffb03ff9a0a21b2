package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"healix/internal/tui"
)

// runPlain is the line-based chat loop for terminals without alt-screen support.
func runPlain(ctx context.Context, in io.Reader, out io.Writer, conv tui.Conversation) error {
	fmt.Fprintln(out, tui.Greeting)
	fmt.Fprintln(out, "Type 'q' or 'quit' to exit, 'c' to clear history.")
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		q := strings.TrimSpace(sc.Text())
		switch strings.ToLower(q) {
		case "":
			continue
		case "q", "quit":
			fmt.Fprintln(out, tui.Goodbye)
			return nil
		case "c":
			conv.Reset()
			fmt.Fprintln(out, tui.Cleared)
			continue
		}
		fmt.Fprintln(out, tui.Thinking)
		answer := conv.Ask(ctx, q)
		fmt.Fprintf(out, "HealixAI: %s\n", answer)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
