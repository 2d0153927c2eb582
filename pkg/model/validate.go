package model

import (
	"errors"
	"fmt"
)

const (
	MaxNickLength      = 12
	MaxLoginIDLength   = 16
	MaxGroupNameLength = 12
	MaxTopicLength     = 160
)

var ErrNickEmpty = errors.New("nickname must not be empty")
var ErrNickTooLong = fmt.Errorf("nickname must not exceed %d characters", MaxNickLength)
var ErrNickInvalidChars = errors.New("nickname must contain only alphanumeric characters, underscores, hyphens, or dots")
var ErrLoginIDEmpty = errors.New("login id must not be empty")
var ErrLoginIDTooLong = fmt.Errorf("login id must not exceed %d characters", MaxLoginIDLength)
var ErrLoginIDInvalidChars = errors.New("login id must contain only alphanumeric characters, underscores, hyphens, or dots")
var ErrGroupNameEmpty = errors.New("group name must not be empty")
var ErrGroupNameTooLong = fmt.Errorf("group name must not exceed %d characters", MaxGroupNameLength)
var ErrGroupNameInvalidChars = errors.New("group name must contain only alphanumeric characters, underscores, hyphens, or dots")

func validWord(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}

// ValidateNick checks that a nickname is 1-12 ASCII alphanumeric,
// underscore, hyphen, or dot characters.
func ValidateNick(nick string) error {
	if len(nick) == 0 {
		return ErrNickEmpty
	}
	if len(nick) > MaxNickLength {
		return ErrNickTooLong
	}
	if !validWord(nick) {
		return ErrNickInvalidChars
	}
	return nil
}

// ValidateLoginID checks the freely chosen login identity.
func ValidateLoginID(loginid string) error {
	if len(loginid) == 0 {
		return ErrLoginIDEmpty
	}
	if len(loginid) > MaxLoginIDLength {
		return ErrLoginIDTooLong
	}
	if !validWord(loginid) {
		return ErrLoginIDInvalidChars
	}
	return nil
}

// ValidateGroupName checks a channel name.
func ValidateGroupName(name string) error {
	if len(name) == 0 {
		return ErrGroupNameEmpty
	}
	if len(name) > MaxGroupNameLength {
		return ErrGroupNameTooLong
	}
	if !validWord(name) {
		return ErrGroupNameInvalidChars
	}
	return nil
}
