//go:build gstreamer

package main

import (
	"log/slog"

	"github.com/e7canasta/stream-buffer/internal/config"
	"github.com/e7canasta/stream-buffer/source"
)

func newRTSPRunner(cfg *config.Config, rc source.RTSPConfig, logger *slog.Logger) (runner, error) {
	src, err := source.NewRTSP(rc)
	if err != nil {
		return nil, err
	}
	return asRunner(newService[uint64, source.Frame](cfg, src, frameMeta, logger))
}
