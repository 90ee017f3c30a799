package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Answers holds the raw player details, from flags or from the prompt
type Answers struct {
	RiotID   string // Name#TAG, split when GameName/TagLine are empty
	GameName string
	TagLine  string
	Region   string
}

// Prompter asks for whatever Answers is missing
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// SplitRiotID splits "Name#TAG" on the last '#'
func SplitRiotID(id string) (string, string, bool) {
	i := strings.LastIndex(id, "#")
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return strings.TrimSpace(id[:i]), strings.TrimSpace(id[i+1:]), true
}

// Collect fills in missing fields, prompting only for those still empty.
// A blank region is left blank and resolves to the default region later.
// Cancelling ctx abandons a pending prompt.
func (p *Prompter) Collect(ctx context.Context, a Answers) (Answers, error) {
	if a.RiotID != "" && a.GameName == "" && a.TagLine == "" {
		name, tag, ok := SplitRiotID(a.RiotID)
		if !ok {
			return a, fmt.Errorf("invalid Riot ID %q, expected Name#TAG", a.RiotID)
		}
		a.GameName, a.TagLine = name, tag
	}

	var err error
	if a.GameName == "" {
		if a.GameName, err = p.ask(ctx, "Enter Game Name: "); err != nil {
			return a, err
		}
		// Name#TAG typed in one go
		if name, tag, ok := SplitRiotID(a.GameName); ok && a.TagLine == "" {
			a.GameName, a.TagLine = name, tag
		}
	}
	if a.TagLine == "" {
		if a.TagLine, err = p.ask(ctx, "Enter Tag Line (without #): "); err != nil {
			return a, err
		}
		a.TagLine = strings.TrimPrefix(a.TagLine, "#")
	}
	if a.Region == "" {
		if a.Region, err = p.ask(ctx, "Enter Region (americas, europe, asia, sea): "); err != nil && !errors.Is(err, io.EOF) {
			return a, err
		}
	}

	if a.GameName == "" || a.TagLine == "" {
		return a, errors.New("game name and tag line are required")
	}
	return a, nil
}

func (p *Prompter) ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)

	type result struct {
		line string
		err  error
	}
	// the read cannot be interrupted, so it is left behind on cancel
	done := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		done <- result{line, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	case r = <-done:
	}

	line := strings.TrimSpace(r.line)
	if r.err != nil {
		if errors.Is(r.err, io.EOF) && line != "" {
			return line, nil
		}
		return line, fmt.Errorf("failed to read input: %w", r.err)
	}
	return line, nil
}
