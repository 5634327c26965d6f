package stream

import (
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextCharset names the encoding a child is assumed to emit on its
// output pipe; a child process is an arbitrary external binary and
// cannot be assumed to emit UTF-8.
type TextCharset int

const (
	// UTF8 passes bytes through unchanged.
	UTF8 TextCharset = iota
	// UTF16LE decodes little-endian UTF-16 with no BOM handling.
	UTF16LE
	// UTF16BE decodes big-endian UTF-16 with no BOM handling.
	UTF16BE
	// UTF16BOM decodes UTF-16, sniffing endianness from a leading BOM and
	// defaulting to little-endian if none is present.
	UTF16BOM
	// Latin1 decodes ISO-8859-1.
	Latin1
)

func (c TextCharset) decoder() encoding.Encoding {
	switch c {
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case UTF16BOM:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case Latin1:
		return charmap.ISO8859_1
	default:
		return encoding.Nop
	}
}

// Text wraps the stream's output, transcoding bytes from charset to
// UTF-8 as they are read.
func (s *Stream) Text(charset TextCharset) io.Reader {
	return transform.NewReader(s, charset.decoder().NewDecoder())
}
