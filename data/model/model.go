package model

import (
	"strconv"
	"strings"
)

// BoardID identifies one collaborative canvas
type BoardID int64

func (id BoardID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseBoardID accepts a numeric board id, optionally prefixed with "board-"
func ParseBoardID(s string) (BoardID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "board-")

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}

	return BoardID(i), nil
}

type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Identity is the caller as resolved by the identity layer.
// The zero value is an unidentified caller.
type Identity struct {
	UserID   UserID `json:"userId"`
	Username string `json:"username"`
}

func (i Identity) Known() bool {
	return i.UserID != 0
}

// Participant is a user currently present on a board
type Participant struct {
	UserID   UserID `json:"userId"`
	Username string `json:"username"`
}
