// Package stream implements the shared buffer, the producer loop controller
// and the cursor readers behind the public streambuffer package.
//
// This package is INTERNAL - clients MUST use the public API in the parent
// package.
//
// Goroutine topology:
//   - 1 per running generation: the producer loop (spawned by Start)
//   - N external: reader goroutines, each owning its own *Reader
//
// Data flow:
//
//	Source.Read → loop → Buffer (write scope) → Reader (read scope) × N
//
// A restart creates a new generation with a fresh Buffer. Readers made for
// an older generation stay bound to its frozen buffer.
package stream
