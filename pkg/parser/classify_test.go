package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/quickfix/pkg/block"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want LineType
	}{
		{"", Blank},
		{"src/a.py: note: In function \"f\":", Note},
		{"src/a.py:12: error: bad", Location},
		{"src/a.py:12:5: error: bad", Location},
		{"src/a.py:58:5:58:29: error: bad", Location},
		{"/abs/path/a.py:1: x", Location},
		{"src/a.py:12:5: note: See https://example.com", Location},
		{"Found 3 errors in 2 files", Summary},
		{"========= 2 failed in 1.2s =========", Summary},
		{"___________ test_name ___________", Separator},
		{"_ _ _ _ _ _", Separator},
		{"    indented.py:1: not a location", Other},
		{"E     'old' 'new:1: value'", Other},
		{"E     '' 'src/test.py:1: error: Test'", Other},
		{"tests/test_search.py:142: ", Other},
		{"FAILED tests/test_x.py::test_y - ValueError", Other},
		{"plain text", Other},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.line), "got %s", Classify(tt.line))
		})
	}
}

func TestClassify_ANSIIsStrippedFirst(t *testing.T) {
	coloured := "\x1b[1mfile.py\x1b[0m:10:5: error"
	assert.Equal(t, Classify("file.py:10:5: error"), Classify(StripANSI(coloured)))
	assert.Equal(t, Location, Classify(StripANSI("src/test.py:42:\x1b[31m error: Type error\x1b[0m")))
}

func TestLocationKey(t *testing.T) {
	assert.Equal(t, "src/file.py:10:5", LocationKey("\x1b[1msrc/file.py:10:5: \x1b[31merror message\x1b[0m"))
	assert.Equal(t, "src/a.py:58:5", LocationKey("src/a.py:58:5:58:29: error"))
	assert.Equal(t, "", LocationKey("no location here"))
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want block.Location
	}{
		{"mypy", mypyBlocks[0], block.Location{File: "src/jobsearch/search.py", Line: 58}},
		{"mypy fancy", mypyFancyBlocks[0], block.Location{File: "src/jobsearch/cadremploi_scraper.py", Line: 43, Column: 35}},
		{"mypy absolute", mypyAbsoluteBlocks[0], block.Location{File: "/path/to/src/jobsearch/cadremploi_scraper.py", Line: 43}},
		{"mypy very fancy", mypyVeryFancyBlocks[0], block.Location{File: "src/jobsearch/search.py", Line: 58, Column: 5}},
		{"ruff full", ruffFullBlocks[0], block.Location{File: "src/jobsearch/search_cli.py", Line: 8, Column: 1}},
		{"ruff concise", ruffConciseBlocks[0], block.Location{File: "src/jobsearch/search_cli.py", Line: 8, Column: 1}},
		{"pytest auto", pytestAutoBlocks[1], block.Location{File: "tests/test_search.py", Line: 133}},
		{"pytest auto no message", pytestAutoBlocks[2], block.Location{File: "tests/test_search.py", Line: 142}},
		{"pytest short", pytestShortBlocks[1], block.Location{File: "tests/test_search.py", Line: 133}},
		{"pytest line", pytestLineBlocks[1], block.Location{File: "/Users/david/code/jobsearch/tests/test_search.py", Line: 133}},
		{"ansi", "\x1b[31mtests/test_example.py:100: ValueError\x1b[0m", block.Location{File: "tests/test_example.py", Line: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locate(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocate_NotFound(t *testing.T) {
	_, err := Locate("nothing to see here\n  still nothing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoLocation))
}
