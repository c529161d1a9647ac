package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/quickfix/pkg/block"
)

// ErrNoLocation is returned when a text holds no recognisable location.
var ErrNoLocation = errors.New("location pattern not found")

// Locate finds the first file location in a block of text. It accepts the
// "file:line[:col]: message" form on any line, then the "--> file:line:col"
// arrow form.
func Locate(text string) (block.Location, error) {
	plain := StripANSI(text)
	m := blockLocationRe.FindStringSubmatch(plain)
	if m == nil {
		m = arrowLocationRe.FindStringSubmatch(plain)
	}
	if m == nil {
		return block.Location{}, fmt.Errorf("%w in %q", ErrNoLocation, plain)
	}
	return parseLocationKey(m[1])
}

func parseLocationKey(key string) (block.Location, error) {
	parts := strings.Split(key, ":")
	loc := block.Location{File: parts[0]}
	var err error
	if len(parts) > 1 {
		if loc.Line, err = strconv.Atoi(parts[1]); err != nil {
			return block.Location{}, fmt.Errorf("parse line %q: %w", parts[1], err)
		}
	}
	if len(parts) > 2 {
		if loc.Column, err = strconv.Atoi(parts[2]); err != nil {
			return block.Location{}, fmt.Errorf("parse column %q: %w", parts[2], err)
		}
	}
	return loc, nil
}
