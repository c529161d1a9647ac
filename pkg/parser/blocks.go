package parser

import (
	"strings"

	"github.com/ternarybob/quickfix/pkg/block"
	"github.com/ternarybob/quickfix/pkg/stream"
)

// Blocks splits lines and assembles the chunks into located blocks.
func Blocks(lines stream.Stream[string]) stream.Stream[block.Block] {
	return FromChunks(Split(lines))
}

// FromChunks groups a NUL-delimited chunk stream into blocks. Each block gets
// the first location found in its text, if any.
func FromChunks(chunks stream.Stream[string]) stream.Stream[block.Block] {
	var sb strings.Builder
	done := false
	return stream.FromFunc(func() (block.Block, bool, error) {
		if done {
			return block.Block{}, false, nil
		}
		for chunks.Next() {
			c := chunks.Value()
			if c == "\x00" {
				b := newBlock(sb.String())
				sb.Reset()
				return b, true, nil
			}
			sb.WriteString(c)
		}
		done = true
		if err := chunks.Err(); err != nil {
			return block.Block{}, false, err
		}
		if sb.Len() == 0 {
			return block.Block{}, false, nil
		}
		return newBlock(sb.String()), true, nil
	})
}

func newBlock(text string) block.Block {
	loc, err := Locate(text)
	if err != nil {
		return block.Informational(text)
	}
	return block.Block{Location: loc, Text: text}
}
