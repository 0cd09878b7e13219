package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrProfileIncomplete marks a question asked before name, birthdate and blood type are set.
var ErrProfileIncomplete = errors.New("profile incomplete")

// ErrInvalidBloodType is returned when parsing anything outside A, B, AB, O.
var ErrInvalidBloodType = errors.New("invalid blood type")

type BloodType string

const (
	BloodA  BloodType = "A"
	BloodB  BloodType = "B"
	BloodAB BloodType = "AB"
	BloodO  BloodType = "O"
)

// BloodTypes lists the selectable values in display order.
var BloodTypes = []BloodType{BloodA, BloodB, BloodAB, BloodO}

// ParseBloodType accepts the four ABO groups, case-insensitively.
func ParseBloodType(raw string) (BloodType, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	for _, bt := range BloodTypes {
		if string(bt) == raw {
			return bt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBloodType, raw)
}

const BirthdateLayout = "2006-01-02"

// UserProfile holds the sidebar form fields for the lifetime of a session.
type UserProfile struct {
	Name      string    `json:"name"`
	Birthdate time.Time `json:"birthdate"`
	BloodType BloodType `json:"blood_type"`
}

// Complete reports whether every field is present.
func (p UserProfile) Complete() bool {
	return strings.TrimSpace(p.Name) != "" && !p.Birthdate.IsZero() && p.BloodType != ""
}

// Validate returns ErrProfileIncomplete when Complete is false.
func (p UserProfile) Validate() error {
	if !p.Complete() {
		return ErrProfileIncomplete
	}
	return nil
}

// Text renders the profile the way it is handed to the generation prompt.
func (p UserProfile) Text() string {
	birth := ""
	if !p.Birthdate.IsZero() {
		birth = p.Birthdate.Format(BirthdateLayout)
	}
	return fmt.Sprintf("姓名: %s, 出生年月日: %s, 血型: %s", strings.TrimSpace(p.Name), birth, p.BloodType)
}
