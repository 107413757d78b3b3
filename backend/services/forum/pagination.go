package forum

import "strconv"

// PageSize is the number of topics or comments per page.
const PageSize = 20

// Page is a window over an ordered collection.
type Page struct {
	Offset int  `json:"offset"`
	Next   *int `json:"next"`
	Back   *int `json:"back"`
}

// NormalizeOffset parses a requested offset. Anything malformed, negative,
// not aligned to PageSize or past the end of the collection becomes 0.
func NormalizeOffset(raw string, total int64) int {
	if raw == "" {
		return 0
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 || offset%PageSize != 0 || int64(offset) >= total {
		return 0
	}
	return offset
}

// Paginate builds the window starting at offset.
func Paginate(offset int, total int64) Page {
	p := Page{Offset: offset}
	if int64(offset+PageSize) < total {
		next := offset + PageSize
		p.Next = &next
	}
	if offset >= PageSize {
		back := offset - PageSize
		p.Back = &back
	}
	return p
}

// LastPageOffset is the offset of the page holding the last of count items.
func LastPageOffset(count int64) int {
	if count <= 0 {
		return 0
	}
	return int((count - 1) / PageSize * PageSize)
}
