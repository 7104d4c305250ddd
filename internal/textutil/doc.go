// Package textutil provides text processing utilities for filename
// sanitization.
//
// Sanitized names are safe to embed in library paths on common filesystems:
// path separators and other reserved characters are replaced or stripped,
// trailing dots removed, and overly long names truncated.
package textutil
