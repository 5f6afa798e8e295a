package source

import "time"

// Frame is a single decoded video frame.
type Frame struct {
	// Seq is the monotonic sequence number within one generation, starting at 1.
	Seq uint64
	// Timestamp is when the frame was captured or generated.
	Timestamp time.Time
	Width     int
	Height    int
	// Data holds the pixels (BGR24 for Mock, RGB for RTSP).
	Data []byte
	// SourceStream identifies the stream (LQ, HQ, ...).
	SourceStream string
	// TraceID follows the frame across consumers.
	TraceID string
}

// FrameKey orders frames by sequence number.
func FrameKey(f Frame) uint64 { return f.Seq }

// FrameMeta is a Frame without its pixel data, for logs and fan-out.
type FrameMeta struct {
	Seq          uint64    `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SizeBytes    int       `json:"size_bytes"`
	SourceStream string    `json:"source_stream"`
	TraceID      string    `json:"trace_id"`
}

// Meta returns the frame metadata.
func (f Frame) Meta() FrameMeta {
	return FrameMeta{
		Seq:          f.Seq,
		Timestamp:    f.Timestamp,
		Width:        f.Width,
		Height:       f.Height,
		SizeBytes:    len(f.Data),
		SourceStream: f.SourceStream,
		TraceID:      f.TraceID,
	}
}
