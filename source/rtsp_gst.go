//go:build gstreamer

package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	streambuffer "github.com/e7canasta/stream-buffer"
	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// frameQueue is how many decoded frames wait for Read before the appsink
// callback starts dropping.
const frameQueue = 4

// RTSP decodes an H.264 RTSP stream with GStreamer:
//
//	rtspsrc → rtph264depay → avdec_h264 → videoconvert → videoscale →
//	videorate → capsfilter → appsink
//
// The appsink callback copies each frame into a small queue; Read drains it
// without blocking.
type RTSP struct {
	cfg RTSPConfig

	mu       sync.Mutex
	pipeline *gst.Pipeline
	frames   chan Frame

	seq       uint64 // atomic
	bytesRead uint64 // atomic
	dropped   uint64 // atomic
}

var _ streambuffer.Source[uint64, Frame] = (*RTSP)(nil)

// NewRTSP creates an RTSP source. The pipeline is built on Open.
func NewRTSP(cfg RTSPConfig) (*RTSP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RTSP{cfg: cfg}, nil
}

func (r *RTSP) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	gst.Init(nil)

	pipeline, depay, rtspsrc, sink, err := r.buildPipeline()
	if err != nil {
		return err
	}

	atomic.StoreUint64(&r.seq, 0)
	frames := make(chan Frame, frameQueue)

	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(s *app.Sink) gst.FlowReturn {
			return r.onNewSample(s, frames)
		},
	})
	rtspsrc.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		sinkPad := depay.GetStaticPad("sink")
		if sinkPad == nil {
			slog.Error("rtsp: failed to get sink pad from rtph264depay")
			return
		}
		if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
			slog.Error("rtsp: failed to link pads", "src_pad", srcPad.GetName(), "ret", ret)
		}
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("rtsp: failed to start pipeline: %w", err)
	}

	r.pipeline = pipeline
	r.frames = frames

	slog.Info("rtsp: stream opened",
		"url", r.cfg.URL,
		"width", r.cfg.Width,
		"height", r.cfg.Height,
		"fps", r.cfg.TargetFPS,
	)
	return nil
}

func (r *RTSP) buildPipeline() (*gst.Pipeline, *gst.Element, *gst.Element, *app.Sink, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("rtsp: failed to create pipeline: %w", err)
	}

	rtspsrc, err := gst.NewElement("rtspsrc")
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("rtsp: failed to create rtspsrc: %w", err)
	}
	rtspsrc.SetProperty("location", r.cfg.URL)
	rtspsrc.SetProperty("protocols", 4) // TCP only
	latency := 200
	if r.cfg.TargetFPS <= 2.0 {
		latency = 50
	}
	rtspsrc.SetProperty("latency", latency)

	elements := make([]*gst.Element, 0, 6)
	for _, name := range []string{"rtph264depay", "avdec_h264", "videoconvert", "videoscale", "videorate", "capsfilter"} {
		elem, err := gst.NewElement(name)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("rtsp: failed to create %s: %w", name, err)
		}
		elements = append(elements, elem)
	}
	depay, videorate, capsfilter := elements[0], elements[4], elements[5]

	depay.SetProperty("request-keyframe", true)
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(
		framerateCaps(r.cfg.Width, r.cfg.Height, r.cfg.TargetFPS),
	))

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("rtsp: failed to create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)

	chain := append(elements, sink.Element)
	pipeline.AddMany(append([]*gst.Element{rtspsrc}, chain...)...)
	// rtspsrc pads are dynamic, linked on pad-added.
	if err := gst.ElementLinkMany(chain...); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("rtsp: failed to link pipeline elements: %w", err)
	}
	return pipeline, depay, rtspsrc, sink, nil
}

// onNewSample copies the mapped buffer (GStreamer reuses it) and queues the
// frame, dropping it when Read is behind.
func (r *RTSP) onNewSample(sink *app.Sink, frames chan<- Frame) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("rtsp: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("rtsp: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	atomic.AddUint64(&r.bytesRead, uint64(len(frameData)))
	frame := Frame{
		Seq:          atomic.AddUint64(&r.seq, 1),
		Timestamp:    time.Now(),
		Width:        r.cfg.Width,
		Height:       r.cfg.Height,
		Data:         frameData,
		SourceStream: r.cfg.SourceStream,
		TraceID:      uuid.New().String(),
	}

	select {
	case frames <- frame:
	default:
		atomic.AddUint64(&r.dropped, 1)
		slog.Debug("rtsp: dropping frame, queue full", "seq", frame.Seq)
	}
	return gst.FlowOK
}

func (r *RTSP) Read() (Frame, bool, error) {
	r.mu.Lock()
	frames := r.frames
	r.mu.Unlock()
	if frames == nil {
		return Frame{}, false, fmt.Errorf("rtsp: read before open")
	}

	select {
	case f := <-frames:
		return f, true, nil
	default:
		return Frame{}, false, nil
	}
}

func (r *RTSP) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pipeline == nil {
		return nil
	}
	err := r.pipeline.SetState(gst.StateNull)
	r.pipeline = nil
	r.frames = nil

	slog.Info("rtsp: stream closed",
		"frames", atomic.LoadUint64(&r.seq),
		"dropped", atomic.LoadUint64(&r.dropped),
		"bytes_read", atomic.LoadUint64(&r.bytesRead),
	)
	if err != nil {
		return fmt.Errorf("rtsp: failed to set pipeline to NULL: %w", err)
	}
	return nil
}

func (r *RTSP) Key(f Frame) uint64 { return f.Seq }

func (r *RTSP) Info() streambuffer.Info {
	return streambuffer.Info{
		"type":   "rtsp",
		"url":    r.cfg.URL,
		"width":  r.cfg.Width,
		"height": r.cfg.Height,
		"fps":    r.cfg.TargetFPS,
		"source": r.cfg.SourceStream,
		"format": "RGB",
	}
}

// PreferredBackoff polls four times per expected frame period.
func (r *RTSP) PreferredBackoff() time.Duration {
	return r.cfg.framePeriod() / 4
}
