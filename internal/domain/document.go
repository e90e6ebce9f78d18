package domain

// Caret is a selection in UTF-16 code units, the unit the webview textarea
// reports for selectionStart and selectionEnd.
type Caret struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Collapsed returns a caret with both ends at pos.
func Collapsed(pos int) Caret {
	return Caret{Start: pos, End: pos}
}

// Valid reports whether 0 <= Start <= End <= length.
func (c Caret) Valid(length int) bool {
	return c.Start >= 0 && c.Start <= c.End && c.End <= length
}

// Clamp pulls both ends into [0, length] keeping Start <= End.
func (c Caret) Clamp(length int) Caret {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v > length {
			return length
		}
		return v
	}
	c.Start = clamp(c.Start)
	c.End = clamp(c.End)
	if c.Start > c.End {
		c.Start = c.End
	}
	return c
}

// Document is a snapshot of the shared text buffer.
type Document struct {
	Content string `json:"content"`
	Caret   Caret  `json:"caret"`
}
