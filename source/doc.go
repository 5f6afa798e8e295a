// Package source provides producers for streambuffer.StreamBuffer.
//
//   - Counter: "s<n>" strings keyed by n, optionally paced
//   - Quick: items that are their own key, from a read function
//   - Func: any read function, items enumerated and keyed by read index
//   - Mock: synthetic BGR24 video frames at a target FPS
//   - RTSP: H.264 RTSP camera frames via GStreamer (build tag "gstreamer")
//
// All sources are non-blocking: Read returns ok=false when nothing is
// ready, and the stream buffer loop backs off.
package source
