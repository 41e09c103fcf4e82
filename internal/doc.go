// Package internal contains the core implementation packages for mdbook-env.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the mdbook-env preprocessor.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - counter: Chapter, section and per-environment numbering
//   - env: Header parsing, block extraction and the environment registry
//   - document: Markdown events and reverse-order splicing
//   - markdown: goldmark-backed event source
//   - preprocess: One pass over a chapter, rendering every environment block
//   - mdbook: The mdbook JSON protocol and concurrent chapter passes
//   - config: Configuration management with validation
//   - errors: Typed errors and block failure collection
//   - logging: Structured logging to stderr
//   - watcher: File system monitoring with debouncing
//   - version: Build metadata
//
// # Data Flow
//
// A chapter flows through the packages in one direction:
//
//   - markdown turns the chapter into heading and code block events
//   - preprocess advances counters on headings and renders known blocks
//     through the env registry
//   - document splices the rendered text back in reverse order
//   - mdbook runs one such pass per chapter, each with fresh counters
//
// # Concurrency
//
// A registry is read-only once built and shared by every pass. Counters
// belong to a single pass, so chapters are processed in parallel without
// locking.
//
// For detailed documentation, see the individual package documentation.
package internal
