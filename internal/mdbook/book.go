// Package mdbook speaks the mdbook preprocessor protocol.
//
// mdbook writes a JSON array [context, book] to the preprocessor's standard
// input and reads the modified book back from standard output. The book is
// kept as generic JSON so that fields this package does not know about
// survive the round trip unchanged.
package mdbook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cast"

	enverrors "github.com/conneroisu/mdbook-env/internal/errors"
)

// Context is the part of the preprocessor context that is read.
type Context struct {
	Root          string                 `json:"root"`
	Config        map[string]interface{} `json:"config"`
	Renderer      string                 `json:"renderer"`
	MdbookVersion string                 `json:"mdbook_version"`
}

// PreprocessorConfig returns the [preprocessor.<name>] table of book.toml,
// or nil when the book does not configure it.
func (c *Context) PreprocessorConfig(name string) map[string]interface{} {
	if c == nil || c.Config == nil {
		return nil
	}
	preprocessors := cast.ToStringMap(c.Config["preprocessor"])
	table := cast.ToStringMap(preprocessors[name])
	if len(table) == 0 {
		return nil
	}
	return table
}

// Book is the book as sent by mdbook.
type Book map[string]interface{}

// Chapter is a handle on one chapter of a Book. Setting the content writes
// through to the book.
type Chapter struct {
	item map[string]interface{}
}

// Name returns the chapter name.
func (c *Chapter) Name() string {
	return cast.ToString(c.item["name"])
}

// Path returns the chapter's source path relative to the book source
// directory. Draft chapters have none.
func (c *Chapter) Path() string {
	return cast.ToString(c.item["path"])
}

// Content returns the markdown content of the chapter.
func (c *Chapter) Content() string {
	return cast.ToString(c.item["content"])
}

// SetContent replaces the markdown content of the chapter.
func (c *Chapter) SetContent(content string) {
	c.item["content"] = content
}

// ReadInput decodes the [context, book] pair mdbook sends.
func ReadInput(r io.Reader) (*Context, Book, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, enverrors.NewIOError("failed to read preprocessor input", err)
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, nil, enverrors.NewProtocolError("input is not a JSON array", err)
	}
	if len(pair) != 2 {
		return nil, nil, enverrors.NewProtocolError(
			fmt.Sprintf("expected [context, book], got %d elements", len(pair)), nil)
	}

	var ctx Context
	if err := json.Unmarshal(pair[0], &ctx); err != nil {
		return nil, nil, enverrors.NewProtocolError("malformed preprocessor context", err)
	}

	book, err := decodeBook(pair[1])
	if err != nil {
		return nil, nil, err
	}

	return &ctx, book, nil
}

func decodeBook(data []byte) (Book, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var book Book
	if err := dec.Decode(&book); err != nil {
		return nil, enverrors.NewProtocolError("malformed book", err)
	}
	if book == nil {
		return nil, enverrors.NewProtocolError("book is null", nil)
	}
	return book, nil
}

// WriteBook encodes book to w.
func WriteBook(w io.Writer, book Book) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(book); err != nil {
		return enverrors.NewIOError("failed to write book", err)
	}
	return nil
}

// Chapters returns every chapter of the book in reading order, nested
// chapters directly after their parent. Separators and part titles are
// skipped.
func (b Book) Chapters() []*Chapter {
	var chapters []*Chapter
	// mdbook 0.4 calls the top-level list "sections", 0.5 "items".
	for _, key := range []string{"sections", "items"} {
		if items, ok := b[key].([]interface{}); ok {
			chapters = collectChapters(items, chapters)
		}
	}
	return chapters
}

func collectChapters(items []interface{}, into []*Chapter) []*Chapter {
	for _, item := range items {
		wrapper, ok := item.(map[string]interface{})
		if !ok {
			// "Separator"
			continue
		}
		ch, ok := wrapper["Chapter"].(map[string]interface{})
		if !ok {
			// {"PartTitle": "..."}
			continue
		}
		into = append(into, &Chapter{item: ch})
		if sub, ok := ch["sub_items"].([]interface{}); ok {
			into = collectChapters(sub, into)
		}
	}
	return into
}
