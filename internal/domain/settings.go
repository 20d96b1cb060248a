package domain

import (
	"fmt"
	"strconv"
)

type SizePreset string

const (
	SizeOriginal SizePreset = "original"
	Size1080p    SizePreset = "1080p"
	Size720p     SizePreset = "720p"
	Size480p     SizePreset = "480p"
)

// maxDimension is the bound applied to the longest side of the picture.
var maxDimension = map[SizePreset]int{
	SizeOriginal: 0,
	Size1080p:    1920,
	Size720p:     1280,
	Size480p:     854,
}

type SpeedPreset string

// Ordered from fastest encode / largest output to slowest encode / smallest output.
var speedPresets = []SpeedPreset{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow",
}

const (
	SpeedMedium SpeedPreset = "medium"

	// CRF bounds accepted by libx264. Lower means better fidelity and bigger files.
	MinQuality     = 0
	MaxQuality     = 51
	DefaultQuality = 28

	audioBitrate = "128k"
)

type Settings struct {
	Size    SizePreset  `yaml:"size" json:"size"`
	Quality int         `yaml:"quality" json:"quality"`
	Speed   SpeedPreset `yaml:"speed" json:"speed"`
}

func DefaultSettings() Settings {
	return Settings{
		Size:    SizeOriginal,
		Quality: DefaultQuality,
		Speed:   SpeedMedium,
	}
}

func (s Settings) Validate() error {
	if _, ok := maxDimension[s.Size]; !ok {
		return fmt.Errorf("%w: unknown size preset %q", ErrInvalidSettings, s.Size)
	}
	if s.Quality < MinQuality || s.Quality > MaxQuality {
		return fmt.Errorf("%w: quality %d outside %d-%d", ErrInvalidSettings, s.Quality, MinQuality, MaxQuality)
	}
	if !s.Speed.valid() {
		return fmt.Errorf("%w: unknown speed preset %q", ErrInvalidSettings, s.Speed)
	}
	return nil
}

func (p SpeedPreset) valid() bool {
	for _, s := range speedPresets {
		if s == p {
			return true
		}
	}
	return false
}

func SizePresets() []SizePreset {
	return []SizePreset{SizeOriginal, Size1080p, Size720p, Size480p}
}

func SpeedPresets() []SpeedPreset {
	out := make([]SpeedPreset, len(speedPresets))
	copy(out, speedPresets)
	return out
}

func (s Settings) String() string {
	return fmt.Sprintf("size=%s quality=%d speed=%s", s.Size, s.Quality, s.Speed)
}

// ResolveArgs maps settings to the engine argument list for one input/output
// pair. It is pure: identical inputs always give an identical slice.
func ResolveArgs(s Settings, input, output string) []string {
	args := []string{"-i", input}

	if dim := maxDimension[s.Size]; dim > 0 {
		args = append(args, "-vf", scaleFilter(dim))
	}

	args = append(args,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(s.Quality),
		"-preset", string(s.Speed),
		"-c:a", "aac",
		"-b:a", audioBitrate,
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y", output,
	)
	return args
}

// scaleFilter fits the picture in a dim x dim box, keeping the aspect ratio
// and never upscaling.
func scaleFilter(dim int) string {
	return fmt.Sprintf(
		"scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2",
		dim, dim,
	)
}
