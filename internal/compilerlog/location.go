package compilerlog

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"rescriptls/internal/protocol"
)

// The compiler prints one location line per diagnostic, in one of three
// shapes:
//
//	/src/Demo.res:3:5          point
//	/src/Demo.res:3:5-8        column range on one line
//	/src/Demo.res:3:5-4:2      line:column range
//
// Lines and columns are 1-based, end columns inclusive.

var locationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Path", Pattern: `[^:\n]*\.(?:resi?|ml)`},
	{Name: "Number", Pattern: `\d+`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Dash", Pattern: `-`},
	{Name: "whitespace", Pattern: `[ \t]+`},
})

// Location is a parsed compiler-log location line.
type Location struct {
	Path      string       `parser:"@Path"`
	StartLine int          `parser:"Colon @Number"`
	StartCol  int          `parser:"Colon @Number"`
	End       *locationEnd `parser:"(Dash @@)?"`
}

// locationEnd disambiguates the two range tails: a bare number is an
// end column on the start line, number:number is an end line and column.
type locationEnd struct {
	First  int  `parser:"@Number"`
	Second *int `parser:"(Colon @Number)?"`
}

var locationParser = participle.MustBuild[Location](
	participle.Lexer(locationLexer),
)

// ParseLocation parses a location line, reporting ok=false when the
// line is not one.
func ParseLocation(line string) (Location, bool) {
	loc, err := locationParser.ParseString("", line)
	if err != nil {
		return Location{}, false
	}
	return *loc, true
}

// Range converts the 1-based inclusive log coordinates into an LSP
// half-open zero-based range.
func (l Location) Range() protocol.Range {
	start := protocol.Position{
		Line:      maxZero(l.StartLine - 1),
		Character: maxZero(l.StartCol - 1),
	}
	end := start
	if l.End != nil {
		if l.End.Second != nil {
			end = protocol.Position{
				Line:      maxZero(l.End.First - 1),
				Character: *l.End.Second,
			}
		} else {
			end = protocol.Position{
				Line:      start.Line,
				Character: l.End.First,
			}
		}
	}
	return protocol.Range{Start: start, End: end}
}

func maxZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
