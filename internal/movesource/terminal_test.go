package movesource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestTerminalReadsLines(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("e2e4\r\nNf3\n"), &out)
	ctx := context.Background()

	for _, want := range []string{"e2e4", "Nf3"} {
		got, err := term.ReadLine(ctx, "> ")
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if got != want {
			t.Fatalf("ReadLine = %q, want %q", got, want)
		}
	}
	if _, err := term.ReadLine(ctx, "> "); !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want EOF", err)
	}
	term.Println("done")
	if got := out.String(); got != "> > > done\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestTerminalReadLineCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	term := NewTerminal(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := term.ReadLine(ctx, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}

	go func() { _, _ = io.WriteString(w, "\n") }()
	if err := term.WaitAck(context.Background(), ""); err != nil {
		t.Fatalf("WaitAck: %v", err)
	}
}
