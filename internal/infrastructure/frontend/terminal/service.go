package termfrontend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/internal/core/ports"
	"golang.org/x/term"
)

type service struct {
	in  *os.File
	out io.Writer
}

// NewService prompts on stdin. When stdin is not a terminal the password is
// read as a plain line, an empty line or EOF cancels.
func NewService() ports.Frontend {
	return &service{in: os.Stdin, out: os.Stderr}
}

func (s *service) GetPassword(ctx context.Context, prompt string) (string, error) {
	fmt.Fprintf(s.out, "%s: ", prompt)

	type result struct {
		password string
		err      error
	}
	ch := make(chan result, 1)
	go func() {
		password, err := s.read()
		ch <- result{password, err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(s.out)
		return "", ctx.Err()
	case r := <-ch:
		fmt.Fprintln(s.out)
		if r.err != nil {
			return "", r.err
		}
		if r.password == "" {
			return "", domain.ErrPasswordCancelled
		}
		return r.password, nil
	}
}

func (s *service) read() (string, error) {
	fd := int(s.in.Fd())
	if term.IsTerminal(fd) {
		buf, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}

	line, err := bufio.NewReader(s.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *service) ShowError(message string) {
	fmt.Fprintf(s.out, "Error: %s\n", message)
}
