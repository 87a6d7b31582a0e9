package blob

import (
	"fmt"
	"strings"
)

// Blob is one contentful fragment of one file: the unit of upload.
type Blob struct {
	Path     string // project-relative path, forward slashes
	Fragment int    // fragment index, -1 when the file was not split
	Content  string
	Identity string
}

// Label returns the fragment label: the path with an optional #n suffix.
func (b *Blob) Label() string {
	if b.Fragment < 0 {
		return b.Path
	}
	return fmt.Sprintf("%s#%d", b.Path, b.Fragment)
}

// Split partitions decoded text into line-bounded fragments of at most
// maxLines lines each. Texts within the limit produce a single unsuffixed
// blob; larger texts produce consecutive fragments labelled <path>#<n>
// from n=0. Concatenating the fragment contents in order reproduces the
// input exactly.
func Split(relPath, text string, maxLines int) []Blob {
	lines := splitKeepEnds(text)

	if len(lines) <= maxLines {
		b := Blob{Path: relPath, Fragment: -1, Content: text}
		b.Identity = Identity(b.Label(), b.Content)
		return []Blob{b}
	}

	var blobs []Blob
	for start := 0; start < len(lines); start += maxLines {
		end := start + maxLines
		if end > len(lines) {
			end = len(lines)
		}
		b := Blob{
			Path:     relPath,
			Fragment: len(blobs),
			Content:  strings.Join(lines[start:end], ""),
		}
		b.Identity = Identity(b.Label(), b.Content)
		blobs = append(blobs, b)
	}
	return blobs
}

// splitKeepEnds splits text at \n boundaries, keeping each newline with
// its line. A trailing newline does not introduce an empty final line.
func splitKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, text[:i+1])
		text = text[i+1:]
		if text == "" {
			break
		}
	}
	return lines
}
