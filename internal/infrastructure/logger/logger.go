package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

const logFlags = log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

var levels = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

func init() {
	Info = log.New(os.Stdout, "INFO: ", logFlags)
	Error = log.New(os.Stdout, "ERROR: ", logFlags)
	Debug = log.New(io.Discard, "DEBUG: ", logFlags)
	Warn = log.New(os.Stdout, "WARN: ", logFlags)
}

// Setup points every logger at w and silences the ones below level.
func Setup(w io.Writer, level string) error {
	threshold, ok := levels[strings.ToLower(level)]
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	out := func(l int) io.Writer {
		if l < threshold {
			return io.Discard
		}
		return w
	}

	Debug.SetOutput(out(levels["debug"]))
	Info.SetOutput(out(levels["info"]))
	Warn.SetOutput(out(levels["warn"]))
	Error.SetOutput(out(levels["error"]))
	return nil
}
