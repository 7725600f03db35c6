package utils

import (
	"bytes"
	"io"
	"sync"

	"github.com/fatih/color"
)

var colors = []color.Attribute{color.FgYellow, color.FgGreen, color.FgCyan, color.FgWhite, color.FgMagenta}
var index = -1

var l sync.Mutex

const MaxNameLength = 20

// ColorWriter is an io.Writer that prefixes every line with a colored
// target or service name, so interleaved subprocess output stays readable.
type ColorWriter struct {
	name   string
	writer io.Writer
	c      color.Attribute

	// midline is true when the last write ended without a newline, so the
	// next write continues the same line instead of printing a new prefix.
	midline bool
}

func NewColorWriter(name string, writer io.Writer, newColor bool) io.Writer {
	l.Lock()
	defer l.Unlock()
	if newColor || index < 0 {
		index = (index + 1) % len(colors)
	}

	if len(name) > MaxNameLength {
		name = name[:MaxNameLength-3] + "..."
	}

	return &ColorWriter{
		name:   name,
		writer: writer,
		c:      colors[index],
	}
}

func (c *ColorWriter) Write(p []byte) (int, error) {
	out := color.New(c.c)
	rest := p
	for len(rest) > 0 {
		if !c.midline {
			if _, err := out.Fprintf(c.writer, "%-*s | ", MaxNameLength, c.name); err != nil {
				return 0, err
			}
			c.midline = true
		}
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			if _, err := out.Fprintf(c.writer, "%s", rest); err != nil {
				return 0, err
			}
			break
		}
		if _, err := out.Fprintf(c.writer, "%s", rest[:i+1]); err != nil {
			return 0, err
		}
		c.midline = false
		rest = rest[i+1:]
	}
	return len(p), nil
}
