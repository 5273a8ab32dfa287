package domain

import (
	"time"
)

// Session holds one caller's levels.
type Session struct {
	Identity   string
	Difficulty int
	StartedAt  time.Time
	Levels     []Level
}

// Pin sets level n's success flag to whether guess matches its code and
// returns the new flag. n must be a valid level.
func (s *Session) Pin(n int, guess string) bool {
	lvl := &s.Levels[n-1]
	lvl.Success = lvl.Code == guess
	return lvl.Success
}

// Codes returns every code in level order.
func (s *Session) Codes() []string {
	codes := make([]string, len(s.Levels))
	for i, lvl := range s.Levels {
		codes[i] = lvl.Code
	}
	return codes
}

// Solved returns the number of levels currently flagged as successful.
func (s *Session) Solved() int {
	n := 0
	for _, lvl := range s.Levels {
		if lvl.Success {
			n++
		}
	}
	return n
}
