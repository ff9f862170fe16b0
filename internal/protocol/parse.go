package protocol

import (
	"bytes"
	"fmt"
)

// Field counts per keyword, for each direction.
var (
	requestFields = map[string]int{
		"STORE": 2,
		"LOAD":  1,
	}
	responseFields = map[string]int{
		"DONE":     0,
		"FOUND":    1,
		"NOTFOUND": 0,
	}
)

// scan walks the frame at the start of buf. It returns the keyword and the
// fields completed so far; n is the frame length once the final delimiter
// has arrived and 0 while more bytes are needed.
func scan(buf []byte, table map[string]int) (keyword string, fields []string, n int, err error) {
	end := bytes.IndexByte(buf, Delimiter)
	if end < 0 {
		if !keywordPrefix(buf, table) {
			return "", nil, 0, fmt.Errorf("%w %q", ErrUnknownCommand, buf)
		}
		return "", nil, 0, nil
	}

	keyword = string(buf[:end])
	want, ok := table[keyword]
	if !ok {
		return "", nil, 0, fmt.Errorf("%w %q", ErrUnknownCommand, keyword)
	}

	pos := end + 1
	fields = make([]string, 0, want)
	for len(fields) < want {
		i := pos
		for i < len(buf) && buf[i] != Delimiter {
			if !isLetter(buf[i]) {
				return keyword, fields, 0, fmt.Errorf("%w 0x%02x at offset %d", ErrInvalidByte, buf[i], i)
			}
			i++
		}
		if i == len(buf) {
			return keyword, fields, 0, nil
		}
		fields = append(fields, string(buf[pos:i]))
		pos = i + 1
	}
	return keyword, fields, pos, nil
}

// keywordPrefix reports whether an undelimited buf can still grow into one of
// the keywords in table.
func keywordPrefix(buf []byte, table map[string]int) bool {
	for kw := range table {
		if len(buf) <= len(kw) && kw[:len(buf)] == string(buf) {
			return true
		}
	}
	return false
}

// ParseRequest decodes the request at the start of buf.
//
// It returns the request and the number of bytes it occupies. When buf holds
// only the beginning of a request, n is 0 and err is nil: append more bytes
// and call again. Any error wraps ErrMalformed and is reported as soon as the
// prefix can no longer become a valid request.
func ParseRequest(buf []byte) (req Request, n int, err error) {
	keyword, fields, n, err := scan(buf, requestFields)
	if err != nil {
		return Request{}, 0, err
	}
	if len(fields) > 0 && fields[0] == "" {
		return Request{}, 0, ErrEmptyKey
	}
	if n == 0 {
		return Request{}, 0, nil
	}

	switch keyword {
	case "STORE":
		return StoreRequest(fields[0], fields[1]), n, nil
	default:
		return LoadRequest(fields[0]), n, nil
	}
}

// ParseResponse decodes the response at the start of buf, with the same
// contract as ParseRequest.
func ParseResponse(buf []byte) (resp Response, n int, err error) {
	keyword, fields, n, err := scan(buf, responseFields)
	if err != nil || n == 0 {
		return Response{}, 0, err
	}

	switch keyword {
	case "DONE":
		return Done(), n, nil
	case "FOUND":
		return Found(fields[0]), n, nil
	default:
		return NotFound(), n, nil
	}
}
