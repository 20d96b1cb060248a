// Package validation checks submitted files before they reach the queue.
package validation

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// ErrDisallowedFileType is returned when a file type is not in the allowlist.
var ErrDisallowedFileType = errors.New("file type not allowed")

// allowedMIMETypes lists the containers the compressor accepts.
var allowedMIMETypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/webm":       true,
	"video/x-matroska": true,
	"video/avi":        true,
	"video/x-msvideo":  true,
	"video/mpeg":       true,
	"video/mp2t":       true,
	"video/3gpp":       true,
}

// magicBytesBufferSize is the number of bytes read for content type detection.
const magicBytesBufferSize = 512

// DetectMediaType sniffs the container from the first bytes of r and rewinds it.
// allowed reports whether the type may be queued.
func DetectMediaType(r io.ReadSeeker) (mime string, allowed bool, err error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", false, err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}

	if n == 0 {
		return "application/octet-stream", false, nil
	}
	buf = buf[:n]

	mime = detectContainer(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}

	return mime, allowedMIMETypes[mime], nil
}

// detectContainer recognises video containers http.DetectContentType misses
// or reports too coarsely.
func detectContainer(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}

	// EBML header, shared by Matroska and WebM; the doctype follows within the header.
	if bytes.HasPrefix(buf, []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		if bytes.Contains(buf, []byte("webm")) {
			return "video/webm"
		}
		return "video/x-matroska"
	}

	// RIFF....AVI
	if len(buf) >= 12 && bytes.Equal(buf[0:4], []byte("RIFF")) && bytes.Equal(buf[8:12], []byte("AVI ")) {
		return "video/x-msvideo"
	}

	// MPEG-TS: sync byte every 188 bytes.
	if len(buf) >= 189 && buf[0] == 0x47 && buf[188] == 0x47 {
		return "video/mp2t"
	}

	// ISO base media: [size]["ftyp"][brand]
	if len(buf) >= 12 && bytes.Equal(buf[4:8], []byte("ftyp")) {
		switch brand := string(buf[8:12]); brand {
		case "qt  ":
			return "video/quicktime"
		case "3gp4", "3gp5", "3gp6", "3g2a":
			return "video/3gpp"
		case "M4A ", "M4B ":
			return "audio/mp4"
		default:
			return "video/mp4"
		}
	}

	return ""
}
