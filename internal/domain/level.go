// Package domain contains core domain types for the guard game.
package domain

// LevelCount is the number of levels in every session.
const LevelCount = 10

// Level numbers with special handling. Levels are 1-based.
const (
	// StickyNoteLevel is the level whose code is returned as the Start hint.
	StickyNoteLevel = 4
	// DecoyLevel embeds freshly generated false keys in its prompt.
	DecoyLevel = 6
	// MaskedLevel has its code masked out of completion responses.
	MaskedLevel = 9
	// NoKeyLevel guards a code the persona insists does not exist.
	NoKeyLevel = 10
)

// Level is one challenge slot of a session.
type Level struct {
	Code    string `json:"code"`
	Prompt  string `json:"prompt"`
	Success bool   `json:"success"`
}

// ValidLevel reports whether n is a level number in [1, LevelCount].
func ValidLevel(n int) bool {
	return n >= 1 && n <= LevelCount
}
