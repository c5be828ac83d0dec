package target

import "strings"

// URLType describes the shape of the scan target's path.
type URLType int

const (
	// FileWithExtension is a path such as /abc/test.php.
	FileWithExtension URLType = iota
	// BareDirectory is a path such as /abc/.
	BareDirectory
	// ExtensionlessFile is a path such as /abc/test.
	ExtensionlessFile
)

func (t URLType) String() string {
	switch t {
	case FileWithExtension:
		return "file-with-extension"
	case BareDirectory:
		return "bare-directory"
	case ExtensionlessFile:
		return "extensionless-file"
	default:
		return "unknown"
	}
}

// Shape is the result of classifying a request path.
type Shape struct {
	Type      URLType
	Directory string // segment preceding the last separator
	Filename  string
	Extension string
	BasePath  string // always ends with "/"
}

// Classify splits a raw request path into directory, filename and
// extension and derives the URL type and base path. It is total over any
// path; an empty path is treated as "/".
func Classify(path string) Shape {
	if path == "" {
		path = "/"
	}

	var s Shape
	last := strings.LastIndex(path, "/")
	head, segment := "", path
	if last >= 0 {
		head, segment = path[:last], path[last+1:]
	}

	prev := strings.LastIndex(head, "/")
	s.Directory = head[prev+1:]
	s.BasePath = head[:prev+1]
	if s.BasePath == "" {
		s.BasePath = "/"
	}

	if dot := strings.LastIndex(segment, "."); dot >= 0 {
		s.Filename, s.Extension = segment[:dot], segment[dot+1:]
	} else {
		s.Filename = segment
	}

	switch {
	case s.Filename != "" && s.Extension != "":
		s.Type = FileWithExtension
	case s.Filename != "":
		s.Type = ExtensionlessFile
		s.Extension = ""
	default:
		s.Type = BareDirectory
		s.Filename = ""
		s.Extension = ""
	}
	return s
}
