package main

import (
	"fmt"
	"log/slog"

	"github.com/e7canasta/stream-buffer/internal/config"
	"github.com/e7canasta/stream-buffer/source"
)

// counterItem is the published form of a counter item.
type counterItem struct {
	Key  int    `json:"key"`
	Item string `json:"item"`
}

// newRunner builds the service for the configured source type.
func newRunner(cfg *config.Config, logger *slog.Logger) (runner, error) {
	switch cfg.Source.Type {
	case config.SourceCounter:
		c := cfg.Source.Counter
		src, err := source.NewCounter(c.Start, c.Stop, c.Interval())
		if err != nil {
			return nil, err
		}
		encode := func(s string) any { return counterItem{Key: src.Key(s), Item: s} }
		return asRunner(newService[int, string](cfg, src, encode, logger))

	case config.SourceMock:
		m := cfg.Source.Mock
		src, err := source.NewMock(m.Width, m.Height, m.FPS, m.Name)
		if err != nil {
			return nil, err
		}
		return asRunner(newService[uint64, source.Frame](cfg, src, frameMeta, logger))

	case config.SourceRTSP:
		r := cfg.Source.RTSP
		return newRTSPRunner(cfg, source.RTSPConfig{
			URL:          r.URL,
			Width:        r.Width,
			Height:       r.Height,
			TargetFPS:    r.FPS,
			SourceStream: "LQ",
		}, logger)

	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// asRunner keeps a failed constructor from returning a non-nil runner
// holding a nil service.
func asRunner[S runner](svc S, err error) (runner, error) {
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func frameMeta(f source.Frame) any { return f.Meta() }
