package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ProbeResult is the subset of `ffprobe -print_format json` output the engine reads.
type ProbeResult struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

func ParseProbe(data []byte) (*ProbeResult, error) {
	var p ProbeResult
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}
	return &p, nil
}

// Duration prefers the container duration and falls back to the longest stream.
func (p *ProbeResult) Duration() time.Duration {
	if d := ParseDuration(p.Format.Duration); d > 0 {
		return d
	}
	var longest time.Duration
	for _, s := range p.Streams {
		if d := ParseDuration(s.Duration); d > longest {
			longest = d
		}
	}
	return longest
}

func (p *ProbeResult) Dimensions() (width, height int) {
	for _, s := range p.Streams {
		if s.CodecType == "video" {
			return s.Width, s.Height
		}
	}
	return 0, 0
}

// ParseDuration reads ffprobe's seconds notation ("12.345000").
func ParseDuration(seconds string) time.Duration {
	if seconds == "" || seconds == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(seconds, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return time.Duration(math.Round(v * float64(time.Second)))
}

const (
	oneKilobyte = 1024
	oneMegabyte = oneKilobyte * 1024
	oneGigabyte = oneMegabyte * 1024
)

func FormatSize(bytes int64) string {
	switch {
	case bytes < oneKilobyte:
		return fmt.Sprintf("%d B", bytes)
	case bytes < oneMegabyte:
		return fmt.Sprintf("%.1f KB", float64(bytes)/oneKilobyte)
	case bytes < oneGigabyte:
		return fmt.Sprintf("%.1f MB", float64(bytes)/oneMegabyte)
	default:
		return fmt.Sprintf("%.1f GB", float64(bytes)/oneGigabyte)
	}
}

func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
