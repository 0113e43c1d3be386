// Package textutil provides small text helpers for titles and filenames:
// cleaning extracted titles, deriving a display title from a URL,
// sanitizing names for safe filesystem use, and token fingerprints for
// near-duplicate headline detection.
package textutil
