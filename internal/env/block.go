package env

import "strings"

// minFenceLen is the shortest closing fence marker.
const minFenceLen = 3

// Block is a located environment instance: its parsed info string plus the
// extracted body.
type Block struct {
	Info Info
	Body string
}

// ParseBlock parses the info string and extracts the body from the full
// source span of a fenced code block.
func ParseBlock(info, span string) (Block, error) {
	parsed, err := ParseInfo(info)
	if err != nil {
		return Block{}, err
	}

	return Block{
		Info: parsed,
		Body: ExtractBody(span),
	}, nil
}

// ExtractBody returns the text between the opening fence line and the
// closing fence marker of span, trimmed of surrounding whitespace. A span
// without a newline is read from its first byte; a span shorter than the
// marker has an empty body.
func ExtractBody(span string) string {
	start := 0
	if i := strings.IndexByte(span, '\n'); i >= 0 {
		start = i + 1
	}

	end := len(span) - closingFenceLen(span)
	if end <= start {
		return ""
	}

	return strings.TrimSpace(span[start:end])
}

// closingFenceLen measures the run of backticks or tildes terminating span.
// Runs shorter than a fence fall back to the fixed three byte marker.
func closingFenceLen(span string) int {
	if span == "" {
		return minFenceLen
	}

	last := span[len(span)-1]
	if last != '`' && last != '~' {
		return minFenceLen
	}

	n := 0
	for n < len(span) && span[len(span)-1-n] == last {
		n++
	}
	if n < minFenceLen {
		return minFenceLen
	}
	return n
}
