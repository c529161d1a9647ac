// Package block defines the unit shown in the picker list and its wire format.
package block

import "strconv"

// Location is a position in a source file. Zero numeric fields are absent.
type Location struct {
	File      string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
}

// Valid reports whether the location names at least a file and a line.
func (l Location) Valid() bool {
	return l.File != "" && l.Line > 0
}

// String formats the location as file:line[:col].
func (l Location) String() string {
	if !l.Valid() {
		return ""
	}
	s := l.File + ":" + strconv.Itoa(l.Line)
	if l.Column > 0 {
		s += ":" + strconv.Itoa(l.Column)
	}
	return s
}

// Block is one navigable chunk of tool output. Text keeps the tool's original
// formatting, including ANSI escapes.
type Block struct {
	Location
	Text string
}

// Informational returns a block without a location.
func Informational(text string) Block {
	return Block{Text: text}
}

// Located reports whether the block carries a usable location.
func (b Block) Located() bool {
	return b.Location.Valid()
}
