package movesource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Terminal is a line console. A single goroutine owns the reader, so a
// pending ReadLine can be abandoned when ctx ends.
type Terminal struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
	err   error
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out, lines: make(chan string)}
}

func (t *Terminal) start() {
	go func() {
		sc := bufio.NewScanner(t.in)
		for sc.Scan() {
			t.lines <- sc.Text()
		}
		t.err = sc.Err()
		close(t.lines)
	}()
}

// ReadLine prints prompt and returns the next line without its newline.
// It returns io.EOF once the input is exhausted.
func (t *Terminal) ReadLine(ctx context.Context, prompt string) (string, error) {
	t.once.Do(t.start)
	if prompt != "" {
		fmt.Fprint(t.out, prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-t.lines:
		if !ok {
			if t.err != nil {
				return "", t.err
			}
			return "", io.EOF
		}
		return strings.TrimRight(line, "\r"), nil
	}
}

func (t *Terminal) Println(a ...any) {
	fmt.Fprintln(t.out, a...)
}

// WaitAck blocks until the user presses Enter.
func (t *Terminal) WaitAck(ctx context.Context, prompt string) error {
	_, err := t.ReadLine(ctx, prompt)
	return err
}
