// Package counter provides the hierarchical chapter.section.index numbering
// used to label numbered environments such as theorems and lemmas.
//
// A Counter only ever moves forward. Chapter and section levels start out
// absent and become present the first time the matching heading is seen, so
// a book without top-level headings numbers its theorems "1", "2", ... while
// a book with them numbers "1.1", "1.2", "2.1", ...
package counter

import (
	"strconv"
	"strings"
)

// Counter is a chapter.section.env numbering value. The zero value is the
// default counter.
//
// A chapter or section of 0 means the level is absent. Present levels are
// always >= 1 and the env index is always >= 1.
type Counter struct {
	chapter int
	section int
	// taken counts the envs numbered since the last chapter or section, so
	// the env index is taken+1.
	taken int
}

// New returns the default counter: no chapter, no section, env 1.
func New() Counter {
	return Counter{}
}

// NextChapter advances to the next chapter. A tracked section restarts at 1;
// an untracked section stays absent. The env index restarts at 1.
func (c *Counter) NextChapter() {
	c.chapter++
	if c.section > 0 {
		c.section = 1
	}
	c.taken = 0
}

// NextSection advances to the next section and restarts the env index.
func (c *Counter) NextSection() {
	c.section++
	c.taken = 0
}

// NextEnv advances the env index.
func (c *Counter) NextEnv() {
	c.taken++
}

// Chapter returns the chapter number and whether it is present.
func (c Counter) Chapter() (int, bool) {
	return c.chapter, c.chapter > 0
}

// Section returns the section number and whether it is present.
func (c Counter) Section() (int, bool) {
	return c.section, c.section > 0
}

// Env returns the env index.
func (c Counter) Env() int {
	return c.taken + 1
}

// String formats the counter dot-joined, omitting absent levels: "2.3.1",
// "2.1" or "4".
func (c Counter) String() string {
	var b strings.Builder
	if c.chapter > 0 {
		b.WriteString(strconv.Itoa(c.chapter))
		b.WriteByte('.')
	}
	if c.section > 0 {
		b.WriteString(strconv.Itoa(c.section))
		b.WriteByte('.')
	}
	b.WriteString(strconv.Itoa(c.Env()))
	return b.String()
}

// Set is one live counter per counter identity, scoped to a single document
// pass.
type Set map[string]*Counter

// NewSet creates a fresh default counter for every id.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		c := New()
		s[id] = &c
	}
	return s
}

// NextChapter advances every counter in the set to the next chapter.
func (s Set) NextChapter() {
	for _, c := range s {
		c.NextChapter()
	}
}

// NextSection advances every counter in the set to the next section.
func (s Set) NextSection() {
	for _, c := range s {
		c.NextSection()
	}
}

// Take returns the current value of the counter for id and advances it.
// When id has no live counter, Take returns a fresh default counter and
// false.
func (s Set) Take(id string) (Counter, bool) {
	c, ok := s[id]
	if id == "" || !ok {
		return New(), false
	}
	snapshot := *c
	c.NextEnv()
	return snapshot, true
}
