// Package diag defines the diagnostic model for kernel build logs.
//
// # Purpose
//
//   - Give the host device's checker a structured way to report rejected
//     source without coupling it to log formatting.
//   - Parse the free-form logs that native compilers return so the CLI can
//     count, sort and colour them the same way.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity: error, warning or note.
//   - Code: compact numeric identifier (see codes.go) with a stable string form.
//   - Message: human oriented text; keep it short and actionable.
//   - Pos: file name, line and column of the offending token.
//
// Producers emit through a Reporter. BagReporter collects into a Bag that
// caps the number of entries; DedupReporter drops repeats before forwarding.
//
// # Log format
//
// FormatLog renders one line per diagnostic in the clang layout every OpenCL
// compiler uses:
//
//	<source>:3:5: error: use of undeclared identifier 's32_9'
//
// ParseLog reads that layout back. Lines that do not match (source excerpts,
// caret lines, vendor banners) are kept as continuation text of the preceding
// diagnostic.
package diag
