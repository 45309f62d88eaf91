// Package mediapath parses file paths into sequence entries.
//
// Naming convention:
//
//	<stem>.<zero-padded-frame>.<ext>   frame of a sequence
//	<stem>.<ext>                       single file
//	<stem>.####.<ext>                  templated (unresolved) sequence
//	<stem>.%04d.<ext>                  templated, printf style
package mediapath

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Entry describes one candidate media file.
type Entry struct {
	Basepath   string
	Stem       string
	Extension  string
	Frame      int
	Padding    int
	SingleFile bool
	Templated  bool
}

// NewEntry synthesizes a frame entry from explicit fields.
func NewEntry(basepath, stem string, frame, padding int, ext string) Entry {
	return Entry{
		Basepath:  filepath.Clean(basepath),
		Stem:      stem,
		Extension: ext,
		Frame:     frame,
		Padding:   padding,
	}
}

// NewSingleFile synthesizes a single-file entry.
func NewSingleFile(basepath, stem, ext string) Entry {
	return Entry{
		Basepath:   filepath.Clean(basepath),
		Stem:       stem,
		Extension:  ext,
		SingleFile: true,
	}
}

// Parse splits path into an Entry. It never fails: anything that does not
// look like a sequence frame or template is a single file.
func Parse(path string) Entry {
	dir, name := filepath.Split(path)
	e := Entry{Basepath: filepath.Clean(dir)}
	if dir == "" {
		e.Basepath = "."
	}

	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		e.Stem = name
		e.SingleFile = true
		return e
	}
	e.Extension = name[dot+1:]
	rest := name[:dot]

	sep := strings.LastIndexByte(rest, '.')
	if sep <= 0 {
		// No token, or no stem left once the token is removed.
		e.Stem = rest
		e.SingleFile = true
		return e
	}

	stem, token := rest[:sep], rest[sep+1:]
	switch {
	case isDigits(token):
		frame, err := strconv.Atoi(token)
		if err != nil {
			e.Stem = rest
			e.SingleFile = true
			return e
		}
		e.Stem = stem
		e.Frame = frame
		e.Padding = len(token)
	case isHashRun(token):
		e.Stem = stem
		e.Padding = len(token)
		e.Templated = true
	default:
		if pad, ok := parsePrintf(token); ok {
			e.Stem = stem
			e.Padding = pad
			e.Templated = true
			return e
		}
		e.Stem = rest
		e.SingleFile = true
	}
	return e
}

// Path returns the full path described by the entry.
func (e Entry) Path() string {
	return filepath.Join(e.Basepath, e.Name())
}

// Name returns the file name without the directory.
func (e Entry) Name() string {
	switch {
	case e.SingleFile:
		return joinExt(e.Stem, e.Extension)
	case e.Templated:
		return joinExt(e.Stem+"."+strings.Repeat("#", e.Padding), e.Extension)
	default:
		return e.FrameName(e.Frame)
	}
}

// FrameName returns the file name of frame n in the same sequence.
func (e Entry) FrameName(n int) string {
	return joinExt(fmt.Sprintf("%s.%0*d", e.Stem, e.Padding, n), e.Extension)
}

// Pattern returns the hash-templated path of the sequence this entry belongs to.
func (e Entry) Pattern() string {
	if e.SingleFile {
		return e.Path()
	}
	pad := e.Padding
	if pad < 1 {
		pad = 1
	}
	return filepath.Join(e.Basepath, joinExt(e.Stem+"."+strings.Repeat("#", pad), e.Extension))
}

// PrintfPattern returns the sequence path with a %0Nd frame token.
func (e Entry) PrintfPattern() string {
	if e.SingleFile {
		return e.Path()
	}
	return filepath.Join(e.Basepath, joinExt(fmt.Sprintf("%s.%%0%dd", e.Stem, e.Padding), e.Extension))
}

// Similar reports whether o belongs to the same sequence as e.
// Only the frame number may differ.
func (e Entry) Similar(o Entry) bool {
	return e.Basepath == o.Basepath && e.Stem == o.Stem && e.Extension == o.Extension
}

// WithFrame returns a copy of e renumbered to frame n.
func (e Entry) WithFrame(n int) Entry {
	e.Frame = n
	return e
}

// IsFrame reports whether e is a concrete, numbered sequence frame.
func (e Entry) IsFrame() bool {
	return !e.SingleFile && !e.Templated
}

// Key identifies the sequence an entry belongs to.
func (e Entry) Key() string {
	return e.Basepath + "\x00" + e.Stem + "\x00" + e.Extension
}

func (e Entry) String() string {
	return e.Path()
}

func joinExt(name, ext string) string {
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isHashRun(s string) bool {
	if s == "" {
		return false
	}
	return strings.Trim(s, "#") == ""
}

// parsePrintf recognizes %d, %Nd and %0Nd.
func parsePrintf(s string) (int, bool) {
	if len(s) < 2 || s[0] != '%' || s[len(s)-1] != 'd' {
		return 0, false
	}
	width := s[1 : len(s)-1]
	if width == "" {
		return 1, true
	}
	if !isDigits(width) {
		return 0, false
	}
	n, err := strconv.Atoi(width)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}
