// Package console owns the interactive terminal: line prompts, plain output
// and the hotkeys read while a scan is running.
package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/term"
)

const (
	keyInterrupt = 0x03 // Ctrl+C
	keyProgress  = 0x13 // Ctrl+S
)

// Keys are the callbacks dispatched by WatchKeys.
type Keys struct {
	OnProgress  func()
	OnInterrupt func()
}

// Console reads every byte of input through a single pump goroutine so that
// prompts and hotkeys never compete for stdin. Prompt, ReadLine and
// WatchKeys must not be called concurrently with each other; the print
// methods may be called from any goroutine.
type Console struct {
	in  io.Reader
	out io.Writer
	fd  int

	outMu sync.Mutex
	raw   atomic.Bool

	once    sync.Once
	chunks  chan []byte
	readErr error
	pending []byte
}

func New(in io.Reader, out io.Writer) *Console {
	if in == nil {
		in = strings.NewReader("")
	}
	if out == nil {
		out = io.Discard
	}
	c := &Console{in: in, out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.fd = int(f.Fd())
	}
	return c
}

// IsTerminal reports whether hotkeys can be read from the input.
func (c *Console) IsTerminal() bool {
	return c.fd >= 0
}

func (c *Console) Printf(format string, args ...any) {
	c.write(fmt.Sprintf(format, args...))
}

func (c *Console) Println(args ...any) {
	c.write(fmt.Sprintln(args...))
}

// Prompt prints label and returns the next input line without its line
// terminator. It returns io.EOF when input is exhausted and the context error
// when ctx ends first.
func (c *Console) Prompt(ctx context.Context, label string) (string, error) {
	c.write(label)
	return c.ReadLine(ctx)
}

func (c *Console) ReadLine(ctx context.Context) (string, error) {
	c.start()
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := string(c.pending[:i])
			c.pending = c.pending[i+1:]
			return strings.TrimRight(line, "\r"), nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case chunk, ok := <-c.chunks:
			if ok {
				c.pending = append(c.pending, chunk...)
				continue
			}
			if len(c.pending) > 0 {
				line := string(c.pending)
				c.pending = nil
				return strings.TrimRight(line, "\r"), nil
			}
			if c.readErr != nil && !errors.Is(c.readErr, io.EOF) {
				return "", fmt.Errorf("read input: %w", c.readErr)
			}
			return "", io.EOF
		}
	}
}

// WatchKeys dispatches Ctrl+S or 'p' to OnProgress and Ctrl+C to OnInterrupt
// until ctx ends. A terminal is switched to raw mode for the duration and
// restored before WatchKeys returns. Without a terminal no input is consumed.
func (c *Console) WatchKeys(ctx context.Context, keys Keys) error {
	if !c.IsTerminal() {
		<-ctx.Done()
		return nil
	}

	state, err := term.MakeRaw(c.fd)
	if err != nil {
		return fmt.Errorf("enable raw terminal mode: %w", err)
	}
	c.raw.Store(true)
	defer func() {
		c.raw.Store(false)
		_ = term.Restore(c.fd, state)
	}()

	c.start()
	for {
		for len(c.pending) > 0 {
			key := c.pending[0]
			c.pending = c.pending[1:]
			dispatch(key, keys)
		}
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-c.chunks:
			if !ok {
				<-ctx.Done()
				return nil
			}
			c.pending = append(c.pending, chunk...)
		}
	}
}

func dispatch(key byte, keys Keys) {
	switch key {
	case keyProgress, 'p', 'P':
		if keys.OnProgress != nil {
			keys.OnProgress()
		}
	case keyInterrupt:
		if keys.OnInterrupt != nil {
			keys.OnInterrupt()
		}
	}
}

func (c *Console) start() {
	c.once.Do(func() {
		c.chunks = make(chan []byte, 16)
		go c.pump()
	})
}

func (c *Console) pump() {
	buf := make([]byte, 256)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			c.chunks <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			c.readErr = err
			close(c.chunks)
			return
		}
	}
}

func (c *Console) write(text string) {
	// Raw mode disables the terminal's own newline translation.
	if c.raw.Load() {
		text = strings.ReplaceAll(text, "\n", "\r\n")
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = io.WriteString(c.out, text)
}
