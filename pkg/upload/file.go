// Package upload stages media files as temporary server objects before a
// treasure form references them.
package upload

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// File is one file handed to the upload widget.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	// StagedName is the name the file is uploaded under: "<uuid>_<Name>".
	StagedName string

	serverID string
	rejected bool
}

// NewFile creates a file and assigns its staged name.
func NewFile(name, contentType string, data []byte) *File {
	return &File{
		Name:        name,
		ContentType: contentType,
		Data:        data,
		StagedName:  StagedName(name),
	}
}

// StagedName prefixes name with a random uuid.
func StagedName(name string) string {
	return uuid.NewString() + "_" + name
}

// ServerID is the id the server assigned when the file was staged.
func (f *File) ServerID() string { return f.serverID }

// Staged reports whether the file has a temporary object on the server.
func (f *File) Staged() bool { return f.serverID != "" }

// Rejected reports whether local validation turned the file away.
func (f *File) Rejected() bool { return f.rejected }

// MediaKind is the broad class of an accepted file.
type MediaKind int

const (
	Unsupported MediaKind = iota
	Image
	Video
)

var videoType = regexp.MustCompile(`(?i)^video/(mp4|webm|ogg|avi|mov|wmv|flv)$`)

// KindOf classifies a MIME type.
func KindOf(contentType string) MediaKind {
	ct := strings.TrimSpace(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(strings.ToLower(ct), "image/"):
		return Image
	case videoType.MatchString(ct):
		return Video
	default:
		return Unsupported
	}
}

// Rejection texts.
const (
	TextInvalidType = "Invalid file type. Only images/videos are allowed."
	TextTooMany     = "You can not upload any more files."
	TextUnreadable  = "The file dimensions could not be read. Please try another file."
)

func dimensionText(kind MediaKind, minW, minH int) string {
	noun := "Image"
	if kind == Video {
		noun = "Video"
	}
	return fmt.Sprintf("%s dimensions must be at least %dx%d pixels.", noun, minW, minH)
}
