package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/pagerender/internal/document"
)

const (
	mimePDF    = "application/pdf"
	mimePPTX   = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimeDOCX   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeZIP    = "application/zip"
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Kind        document.Kind
	Description string
}

// Detector validates uploads against the endpoint they were sent to, first
// by name and then by magic bytes.
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// ValidateUpload rejects files whose extension or content does not match kind.
// The extension check runs first so that callers get the endpoint's message.
func (d *Detector) ValidateUpload(filename string, data []byte, kind document.Kind) (*FileTypeInfo, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != kind.Extension() {
		return nil, document.ValidationError(InvalidTypeMessage(kind), nil)
	}
	if len(data) == 0 {
		return nil, document.ValidationError("Uploaded file is empty", nil)
	}

	info := d.Detect(data, ext)
	if info.Kind != kind {
		log.Warn().Str("file", filename).Str("mime", info.MIMEType).Str("expected", string(kind)).Msg("content does not match extension")
		return nil, document.ValidationError(fmt.Sprintf("File content is not a valid %s file", kind.Extension()), nil)
	}
	return info, nil
}

// InvalidTypeMessage is the client-facing rejection for a wrong extension.
func InvalidTypeMessage(kind document.Kind) string {
	return fmt.Sprintf("Invalid file type. Please upload a %s file", kind.Extension())
}

// Detect sniffs data. Bare ZIP containers are attributed to an OOXML kind
// by the extension, since a minimal package may lack the entries mimetype keys on.
func (d *Detector) Detect(data []byte, ext string) *FileTypeInfo {
	mtype := mimetype.Detect(data)
	info := &FileTypeInfo{MIMEType: mtype.String(), Extension: mtype.Extension()}

	switch {
	case descends(mtype, mimePDF):
		info.Kind = document.KindPDF
	case descends(mtype, mimePPTX):
		info.Kind = document.KindSlides
	case descends(mtype, mimeDOCX):
		info.Kind = document.KindWord
	case descends(mtype, mimeZIP):
		switch ext {
		case ".pptx":
			info.Kind = document.KindSlides
		case ".docx":
			info.Kind = document.KindWord
		}
		if info.Kind != "" {
			log.Debug().Str("original", mtype.String()).Str("ext", ext).Msg("attributing ZIP container by extension")
		}
	}
	d.classify(info)
	return info
}

func (d *Detector) classify(info *FileTypeInfo) {
	switch info.Kind {
	case document.KindPDF:
		info.Description = "PDF document"
	case document.KindSlides:
		info.Description = "Microsoft PowerPoint presentation"
	case document.KindWord:
		info.Description = "Microsoft Word document"
	default:
		info.Description = "Unsupported file type"
	}
}

func descends(m *mimetype.MIME, want string) bool {
	for t := m; t != nil; t = t.Parent() {
		if t.Is(want) {
			return true
		}
	}
	return false
}
