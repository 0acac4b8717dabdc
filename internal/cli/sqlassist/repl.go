package sqlassist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const prompt = "sqlassist> "

// REPL reads one question per line until quit, exit, q or end of input.
type REPL struct {
	Backend Backend
	In      io.Reader
	Out     *Renderer
	Err     *Renderer
	// Prompt is written before each line; empty disables it.
	Prompt string
}

func (r *REPL) Run(ctx context.Context) error {
	r.Out.Notice("Ask a question about the data, or type 'help'.")
	if descriptor, err := r.Backend.Schema(ctx); err != nil {
		r.Err.Error(err)
	} else {
		r.Out.Schema(descriptor)
	}
	if warner, ok := r.Backend.(interface{ Warning() string }); ok {
		if warning := warner.Warning(); warning != "" {
			r.Err.Notice(warning)
		}
	}

	scanner := bufio.NewScanner(r.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if r.Prompt != "" {
			_, _ = fmt.Fprint(r.Out.out, r.Prompt)
		}
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			r.Out.Notice("Goodbye!")
			return nil
		case "help":
			r.Out.Help()
			continue
		case "schema":
			descriptor, err := r.Backend.Schema(ctx)
			if err != nil {
				r.Err.Error(err)
				continue
			}
			r.Out.Schema(descriptor)
			continue
		}

		envelope, err := r.Backend.Ask(ctx, line)
		if err != nil {
			r.Err.Error(err)
			continue
		}
		r.Out.Envelope(envelope)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
