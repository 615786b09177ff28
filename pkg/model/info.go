package model

import (
	"fmt"
	"time"
)

// Info describes who created a commit, when, and why.
//
// Info is a value: updating it produces a new Info.
type Info struct {
	Author  string `json:"author" yaml:"author" cbor:"1,keyasint"`
	Message string `json:"message" yaml:"message" cbor:"2,keyasint"`
	Date    int64  `json:"date" yaml:"date" cbor:"3,keyasint"` // seconds since the epoch
	_       struct{}
}

// Clock yields the current time, for commit dates
type Clock func() time.Time

// DefaultClock is the system clock in UTC
func DefaultClock() time.Time {
	return time.Now().UTC()
}

// NewInfo stamps an author and message with the current date
func NewInfo(author, message string) Info {
	return NewInfoAt(DefaultClock, author, message)
}

// NewInfoAt stamps an author and message with a date given by some clock
func NewInfoAt(clock Clock, author, message string) Info {
	if clock == nil {
		clock = DefaultClock
	}
	return Info{
		Author:  author,
		Message: message,
		Date:    clock().Unix(),
	}
}

// EmptyInfo has no author, no message and a zero date
func EmptyInfo() Info {
	return Info{}
}

// Update returns a new Info for a subsequent commit. Empty arguments retain the current values.
func (i Info) Update(author, message string) Info {
	updated := NewInfo(i.Author, i.Message)
	if author != "" {
		updated.Author = author
	}
	if message != "" {
		updated.Message = message
	}
	if updated.Date < i.Date {
		updated.Date = i.Date
	}
	return updated
}

// Time of the commit
func (i Info) Time() time.Time {
	return time.Unix(i.Date, 0).UTC()
}

func (i Info) String() string {
	return fmt.Sprintf("%s [%s] %s", i.Author, i.Time().Format(time.RFC3339), i.Message)
}
