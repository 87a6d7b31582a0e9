package blob

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	// sniffBytes bounds how much of a file the encoding detection reads.
	sniffBytes = 8 * 1024
	// decodeChunk is the buffered-read size used while decoding, so large
	// files are never pulled into memory in one read.
	decodeChunk = 64 * 1024
)

// FileReadError reports a file that could not be opened or read. Callers
// log and skip the file; it is never fatal to a pass.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// candidate pairs an encoding name with its x/text implementation. A nil
// encoding means plain UTF-8. GB2312 is decoded via GB18030, its superset.
type candidate struct {
	name string
	enc  encoding.Encoding
}

var candidates = []candidate{
	{"utf-8", nil},
	{"gbk", simplifiedchinese.GBK},
	{"gb2312", simplifiedchinese.GB18030},
	{"latin-1", charmap.ISO8859_1},
}

// DecodeFile reads the file at path and returns its content as a string.
// Encoding is chosen by inspecting the first 8 KiB against the fixed
// candidate order; the whole file is then decoded with the chosen encoding
// in chunks. When no candidate decodes the sniff cleanly, the file is
// decoded as UTF-8 with malformed bytes replaced and a warning is logged.
func DecodeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &FileReadError{Path: path, Err: err}
	}
	defer f.Close()

	sniff := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, sniff)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", &FileReadError{Path: path, Err: err}
	}
	sniff = sniff[:n]

	chosen, ok := detect(sniff)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", &FileReadError{Path: path, Err: err}
	}

	if !ok {
		data, err := io.ReadAll(bufio.NewReaderSize(f, decodeChunk))
		if err != nil {
			return "", &FileReadError{Path: path, Err: err}
		}
		slog.Warn("no supported encoding matched, decoding as lossy UTF-8", "path", path)
		return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
	}

	var r io.Reader = bufio.NewReaderSize(f, decodeChunk)
	if chosen.enc != nil {
		r = transform.NewReader(r, chosen.enc.NewDecoder())
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, r); err != nil {
		return "", &FileReadError{Path: path, Err: err}
	}
	return sb.String(), nil
}

// detect returns the first candidate that decodes the sniff window
// cleanly. The window may truncate a multi-byte sequence at its end, so a
// defect on the final rune alone does not disqualify a candidate.
func detect(sniff []byte) (candidate, bool) {
	for _, c := range candidates {
		if c.enc == nil {
			if validUTF8Prefix(sniff) {
				return c, true
			}
			continue
		}
		decoded, err := c.enc.NewDecoder().Bytes(sniff)
		if err != nil {
			continue
		}
		if cleanDecode(string(decoded)) {
			return c, true
		}
	}
	return candidate{}, false
}

// validUTF8Prefix reports whether b is valid UTF-8, tolerating an
// incomplete rune at the very end of the window.
func validUTF8Prefix(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			// Possibly a rune cut off by the sniff boundary.
			return len(b) < utf8.UTFMax
		}
		b = b[size:]
	}
	return true
}

// cleanDecode reports whether decoded text contains no replacement runes,
// tolerating a single trailing one caused by sniff truncation.
func cleanDecode(s string) bool {
	i := strings.IndexRune(s, utf8.RuneError)
	if i < 0 {
		return true
	}
	_, last := utf8.DecodeLastRuneInString(s)
	return i == len(s)-last
}
