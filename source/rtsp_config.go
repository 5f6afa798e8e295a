package source

import (
	"fmt"
	"strings"
	"time"
)

// RTSPConfig configures the GStreamer RTSP source.
type RTSPConfig struct {
	URL       string
	Width     int
	Height    int
	TargetFPS float64
	// SourceStream labels the produced frames (LQ, HQ, ...).
	SourceStream string
}

// Validate checks the configuration without touching GStreamer.
func (c RTSPConfig) Validate() error {
	if !strings.HasPrefix(c.URL, "rtsp://") && !strings.HasPrefix(c.URL, "rtsps://") {
		return fmt.Errorf("rtsp: url must start with rtsp:// or rtsps://, got %q", c.URL)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("rtsp: invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.TargetFPS <= 0 {
		return fmt.Errorf("rtsp: target fps must be > 0, got %v", c.TargetFPS)
	}
	return nil
}

// framePeriod is the expected time between frames.
func (c RTSPConfig) framePeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.TargetFPS)
}

// framerateCaps builds the capsfilter string. Fractional rates below 1 fps
// become 1/N.
func framerateCaps(width, height int, fps float64) string {
	numerator, denominator := 1, 1
	if fps < 1.0 {
		denominator = int(1.0 / fps)
	} else {
		numerator = int(fps)
	}
	return fmt.Sprintf(
		"video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/%d",
		width, height, numerator, denominator,
	)
}
