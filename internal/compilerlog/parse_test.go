package compilerlog

import (
	"testing"

	"rescriptls/internal/protocol"
)

func TestParseLocationForms(t *testing.T) {
	cases := []struct {
		line string
		path string
		want protocol.Range
	}{
		{
			"/src/Demo.res:3:5",
			"/src/Demo.res",
			protocol.Range{
				Start: protocol.Position{Line: 2, Character: 4},
				End:   protocol.Position{Line: 2, Character: 4},
			},
		},
		{
			"/src/Demo.res:3:5-8",
			"/src/Demo.res",
			protocol.Range{
				Start: protocol.Position{Line: 2, Character: 4},
				End:   protocol.Position{Line: 2, Character: 8},
			},
		},
		{
			"/src/Demo.res:3:5-4:2",
			"/src/Demo.res",
			protocol.Range{
				Start: protocol.Position{Line: 2, Character: 4},
				End:   protocol.Position{Line: 3, Character: 2},
			},
		},
		{
			"src/nested/Other.resi:10:1",
			"src/nested/Other.resi",
			protocol.Range{
				Start: protocol.Position{Line: 9, Character: 0},
				End:   protocol.Position{Line: 9, Character: 0},
			},
		},
	}
	for _, tc := range cases {
		loc, ok := ParseLocation(tc.line)
		if !ok {
			t.Fatalf("%q: expected a location", tc.line)
		}
		if loc.Path != tc.path {
			t.Errorf("%q: path %q, want %q", tc.line, loc.Path, tc.path)
		}
		if got := loc.Range(); got != tc.want {
			t.Errorf("%q: range %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

func TestParseLocationRejectsProse(t *testing.T) {
	for _, line := range []string{
		"",
		"We've found a bug for you!",
		"Some record fields are undefined: foo",
		"#Done(1234)",
	} {
		if _, ok := ParseLocation(line); ok {
			t.Errorf("%q: should not parse as a location", line)
		}
	}
}

const sampleLog = `#Start(1000)

  Syntax error!
  /src/Demo.res:1:5

  Did you forget a ` + "`;`" + ` here?

  We've found a bug for you!
  /src/Demo.res:3:9-14

  This has type: option<string>
  Somewhere wanted: string

  Warning number 8
  /src/Demo.res:10:1-12:3

  You forgot to handle a possible case here, for example:
  (` + "`" + `AnotherValue)

#Done(1042)
`

func TestParseBlocks(t *testing.T) {
	entries := Parse([]byte(sampleLog), Options{})
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	syntax := entries[0]
	if syntax.Diagnostic.Severity != protocol.SeverityError || syntax.Diagnostic.Code != "syntax" {
		t.Fatalf("unexpected syntax entry %+v", syntax.Diagnostic)
	}

	bug := entries[1]
	if bug.Path != "/src/Demo.res" {
		t.Fatalf("unexpected path %q", bug.Path)
	}
	wantRange := protocol.Range{
		Start: protocol.Position{Line: 2, Character: 8},
		End:   protocol.Position{Line: 2, Character: 14},
	}
	if bug.Diagnostic.Range != wantRange {
		t.Fatalf("unexpected range %+v", bug.Diagnostic.Range)
	}
	wantMessage := "This has type: option<string>\nSomewhere wanted: string"
	if bug.Diagnostic.Message != wantMessage {
		t.Fatalf("message %q, want %q", bug.Diagnostic.Message, wantMessage)
	}

	warning := entries[2]
	if warning.Diagnostic.Severity != protocol.SeverityWarning {
		t.Fatalf("expected warning severity, got %d", warning.Diagnostic.Severity)
	}
	if warning.Diagnostic.Code != "warning 8" {
		t.Fatalf("unexpected code %q", warning.Diagnostic.Code)
	}
}

func TestParseInteriorBlankLinesKept(t *testing.T) {
	entries := Parse([]byte(sampleLog), Options{})
	warning := entries[2].Diagnostic
	want := "You forgot to handle a possible case here, for example:\n(`AnotherValue)"
	if warning.Message != want {
		t.Fatalf("message %q, want %q", warning.Message, want)
	}
}

func TestParsePromotesConfiguredWarnings(t *testing.T) {
	entries := Parse([]byte(sampleLog), Options{ErrorWarnings: []int{8}})
	if entries[2].Diagnostic.Severity != protocol.SeverityError {
		t.Fatalf("warning 8 should be promoted to an error")
	}
}

func TestParseMaxEntries(t *testing.T) {
	entries := Parse([]byte(sampleLog), Options{MaxEntries: 1})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestParseMalformedBlockSkipped(t *testing.T) {
	log := "We've found a bug for you!\nnot a location line at all\n"
	entries := Parse([]byte(log), Options{})
	if len(entries) != 0 {
		t.Fatalf("malformed block should be skipped, got %v", entries)
	}
}
