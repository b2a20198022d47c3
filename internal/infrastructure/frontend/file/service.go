package filefrontend

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// service reads the password from a file each time it's asked, so a wrong
// password can be fixed without restarting. Only the first line is used.
type service struct {
	path string
	// the same wrong password is never submitted twice
	rejected string
}

func NewService(path string) (ports.Frontend, error) {
	if path == "" {
		return nil, fmt.Errorf("missing password file")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("invalid password file: %w", err)
	}
	return &service{path: path}, nil
}

func (s *service) GetPassword(_ context.Context, _ string) (string, error) {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read password file: %w", err)
	}
	password, _, _ := strings.Cut(string(buf), "\n")
	password = strings.TrimRight(password, "\r")
	if password == "" || password == s.rejected {
		return "", domain.ErrPasswordCancelled
	}
	s.rejected = password
	return password, nil
}

func (s *service) ShowError(message string) {
	log.Errorf("%s (password from %s)", message, s.path)
}
