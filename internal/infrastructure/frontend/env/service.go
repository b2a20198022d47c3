package envfrontend

import (
	"context"
	"fmt"

	"github.com/bitonicnl/fireworks/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

type service struct {
	password string
}

func NewService(password string) (ports.Frontend, error) {
	if len(password) <= 0 {
		return nil, fmt.Errorf("missing password in environment")
	}
	return &service{password}, nil
}

func (s *service) GetPassword(_ context.Context, _ string) (string, error) {
	return s.password, nil
}

func (s *service) ShowError(message string) {
	log.Error(message)
}
