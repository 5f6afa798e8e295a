//go:build !gstreamer

package main

import (
	"fmt"
	"log/slog"

	"github.com/e7canasta/stream-buffer/internal/config"
	"github.com/e7canasta/stream-buffer/source"
)

func newRTSPRunner(cfg *config.Config, rc source.RTSPConfig, logger *slog.Logger) (runner, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("rtsp source requires a build with -tags gstreamer")
}
