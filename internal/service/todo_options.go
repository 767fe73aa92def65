package service

import (
	"time"
)

// ServiceOption настраивает сервис при создании; по умолчанию используются системные часы и uuid
type ServiceOption func(*TodoService)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *TodoService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *TodoService) {
		if newID != nil {
			s.newID = newID
		}
	}
}
