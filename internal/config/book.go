package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cast"

	enverrors "github.com/conneroisu/mdbook-env/internal/errors"
)

// BookTOML is the part of book.toml read outside of an mdbook run.
type BookTOML struct {
	Book struct {
		Title string `toml:"title"`
		Src   string `toml:"src"`
	} `toml:"book"`
	Preprocessor map[string]interface{} `toml:"preprocessor"`
}

// ReadBookTOML parses the book.toml at path.
func ReadBookTOML(path string) (*BookTOML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, enverrors.NewIOError("failed to read "+path, err).WithContext("path", path)
	}

	var book BookTOML
	if err := toml.Unmarshal(data, &book); err != nil {
		return nil, enverrors.NewConfigError(enverrors.ErrCodeConfigInvalid, "malformed "+path, err)
	}
	return &book, nil
}

// PreprocessorTable returns the [preprocessor.<name>] table, or nil.
func (b *BookTOML) PreprocessorTable(name string) map[string]interface{} {
	table := cast.ToStringMap(b.Preprocessor[name])
	if len(table) == 0 {
		return nil
	}
	return table
}

// SourceDir returns the book's source directory, "src" by default.
func (b *BookTOML) SourceDir() string {
	if b.Book.Src == "" {
		return DefaultWatchSrc
	}
	return b.Book.Src
}
