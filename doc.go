// Package streambuffer implements a single-producer, multi-cursor, bounded,
// key-ordered stream buffer.
//
// Philosophy: "The producer never waits for consumers."
//
// One producer (a Source) continuously appends key-ordered items to a shared
// buffer of fixed capacity. Any number of readers consume it concurrently,
// each with a private cursor. Readers may lag, catch up, replay a recent
// window or skip ahead without blocking the producer or each other.
//
// # Architecture
//
//	Source.Read → producer loop → Buffer (write scope) → Reader × N (read scope)
//	   (1 goroutine per generation)     maxlen, FIFO eviction     private cursors
//
// Every Start creates a new generation with a fresh buffer. Readers made for
// an older generation keep answering queries against its frozen buffer and
// report IsStopped.
//
// # Basic Usage
//
//	sb, err := streambuffer.New[int, string](src, streambuffer.WithMaxLen(1000))
//	if err != nil {
//	    return err
//	}
//	if err := sb.Start(ctx); err != nil {
//	    return err // src.Open failed, wrapped in ErrSource
//	}
//	defer sb.Stop()
//
//	r, _ := sb.MkReader()
//	for item := range r.Items(ctx) {
//	    process(item) // strictly increasing keys, no duplicates
//	}
//
// # Backpressure
//
// With auto drop (default) the oldest item is evicted when the buffer is
// full, so readers lagging more than maxlen items skip data. With
// WithAutoDrop(false) the producer loop stops reading while the buffer is
// full and the application makes room with Drop.
//
// # Queries
//
// Read, Next, Range, Head and Tail take QueryOptions. Peeking never moves the
// cursor. ErrNotFound is suppressible per call (WithIgnoreNoItemFound) or
// per reader (ReaderDefaults), in which case the null result is returned:
// a nil slice, or ok == false.
package streambuffer
