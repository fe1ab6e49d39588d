package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMedicine is returned when a medicine fails validation.
var ErrInvalidMedicine = errors.New("invalid medicine")

// Medicine represents a medicine tracked for a chat. Deleting a medicine
// cascades to its schedules and intake history.
type Medicine struct {
	ID        int64      `json:"id" db:"id"`
	ChatID    int64      `json:"chat_id" db:"chat_id"`
	Name      string     `json:"name" db:"name"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	Schedules []Schedule `json:"schedules,omitempty"`
}

// Validate checks the medicine has a usable name.
func (m *Medicine) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMedicine)
	}
	return nil
}
