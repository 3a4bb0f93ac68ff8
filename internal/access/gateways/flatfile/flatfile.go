// Package flatfile reads line-oriented text files and reports their
// modification timestamps.
package flatfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Absent is the timestamp ModTime reports for a file that does not exist
// or cannot be stat'ed.
const Absent int64 = 0

// maxLineSize bounds a single line; longer lines fail the read.
const maxLineSize = 1 << 20

// ModTime returns the file's modification time in Unix nanoseconds, or
// Absent when the file is missing.
func ModTime(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return Absent
	}
	return fi.ModTime().UnixNano()
}

// Reader iterates the lines of a text file.
type Reader struct {
	// MaxLineSize overrides the per-line limit when > 0.
	MaxLineSize int
}

// EachLine calls fn for every line of the file at path, in order, with the
// line terminator and a leading UTF-8 BOM removed. An open or scan failure
// is returned after any lines already delivered.
func (r Reader) EachLine(path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	limit := maxLineSize
	if r.MaxLineSize > 0 {
		limit = r.MaxLineSize
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, min(64*1024, limit)), limit)

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
