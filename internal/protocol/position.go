package protocol

import "unicode/utf8"

func clampInt(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// lineStarts returns the byte offset of the first character of every line.
func lineStarts(content []byte) []int {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// OffsetForPosition converts an LSP position into a byte offset within
// content. Character offsets count UTF-16 code units, so astral-plane
// runes advance the column by two. Positions past the end of a line or
// of the document clamp to the nearest valid offset.
func OffsetForPosition(content []byte, pos Position) int {
	if len(content) == 0 || pos.Line < 0 {
		return 0
	}
	starts := lineStarts(content)
	if pos.Line >= len(starts) {
		return len(content)
	}
	off := starts[pos.Line]
	lineEnd := len(content)
	if pos.Line+1 < len(starts) {
		lineEnd = starts[pos.Line+1] - 1
	}
	units := 0
	target := clampInt(pos.Character)
	for off < lineEnd && units < target {
		r, size := utf8.DecodeRune(content[off:lineEnd])
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		off += size
	}
	return off
}

// PositionForOffset converts a byte offset into an LSP position.
func PositionForOffset(content []byte, offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(content) {
		offset = len(content)
	}
	starts := lineStarts(content)
	line := 0
	for line+1 < len(starts) && starts[line+1] <= offset {
		line++
	}
	units := 0
	for off := starts[line]; off < offset; {
		r, size := utf8.DecodeRune(content[off:offset])
		if off+size > offset {
			break
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		off += size
	}
	return Position{Line: line, Character: units}
}
