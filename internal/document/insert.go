// Package document holds the shared text buffer and the caret-aware splice
// used by every producer that writes into it.
package document

import (
	"errors"
	"unicode/utf16"

	"emotext/internal/domain"
)

var (
	ErrEmptyFragment = errors.New("fragment is empty")
	ErrInvalidCaret  = errors.New("caret is outside the content")
)

// Len returns the length of s in UTF-16 code units.
func Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Insert splices fragment into content at caret and returns the new content
// with a collapsed caret placed right after the fragment.
func Insert(content string, caret int, fragment string) (string, domain.Caret, error) {
	if fragment == "" {
		return content, domain.Caret{}, ErrEmptyFragment
	}
	split, err := byteOffset(content, caret)
	if err != nil {
		return content, domain.Caret{}, err
	}
	next := content[:split] + fragment + content[split:]
	return next, domain.Collapsed(caret + Len(fragment)), nil
}

// Remove deletes n code units starting at caret. It undoes Insert when n is
// the inserted fragment's length.
func Remove(content string, caret int, n int) (string, error) {
	start, err := byteOffset(content, caret)
	if err != nil {
		return content, err
	}
	end, err := byteOffset(content, caret+n)
	if err != nil || end < start {
		return content, ErrInvalidCaret
	}
	return content[:start] + content[end:], nil
}

// byteOffset converts a UTF-16 offset into a byte offset. Offsets that fall
// inside a surrogate pair are rejected.
func byteOffset(content string, units int) (int, error) {
	if units < 0 {
		return 0, ErrInvalidCaret
	}
	seen := 0
	for i, r := range content {
		if seen == units {
			return i, nil
		}
		seen += utf16.RuneLen(r)
		if seen > units {
			return 0, ErrInvalidCaret
		}
	}
	if seen == units {
		return len(content), nil
	}
	return 0, ErrInvalidCaret
}
