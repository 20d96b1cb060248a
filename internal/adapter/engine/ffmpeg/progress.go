package ffmpeg

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// progressParser turns ffmpeg's `-progress` key=value stream into fractions
// of total. Without a known total only completion is reported.
type progressParser struct {
	total time.Duration
}

func (p progressParser) parse(line string) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}

	switch key {
	case "progress":
		if value == "end" {
			return 1, true
		}
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys.
		if p.total <= 0 {
			return 0, false
		}
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		fraction := float64(time.Duration(us)*time.Microsecond) / float64(p.total)
		return min(fraction, 1), true
	}
	return 0, false
}

// consume reads r until EOF, calling onProgress for every parsed update.
// It drains r even after a read error so ffmpeg never blocks on its pipe.
func (p progressParser) consume(r io.Reader, onProgress func(float64)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fraction, ok := p.parse(scanner.Text())
		if ok && onProgress != nil {
			onProgress(fraction)
		}
	}
	_, _ = io.Copy(io.Discard, r)
}
