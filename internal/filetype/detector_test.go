package filetype

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pagerender/internal/document"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func zipBytes(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte("<x/>"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestValidateUploadRejectsWrongExtension(t *testing.T) {
	d := New()
	tests := []struct {
		file string
		kind document.Kind
		msg  string
	}{
		{"notes.txt", document.KindPDF, "Invalid file type. Please upload a .pdf file"},
		{"deck.ppt", document.KindSlides, "Invalid file type. Please upload a .pptx file"},
		{"report.pdf", document.KindWord, "Invalid file type. Please upload a .docx file"},
		{"noext", document.KindPDF, "Invalid file type. Please upload a .pdf file"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := d.ValidateUpload(tt.file, pdfBytes, tt.kind)
			require.Error(t, err)
			assert.True(t, document.IsType(err, document.ErrorTypeValidation))
			assert.Equal(t, tt.msg, document.MessageOf(err))
		})
	}
}

func TestValidateUploadAcceptsMatchingContent(t *testing.T) {
	d := New()

	info, err := d.ValidateUpload("Report.PDF", pdfBytes, document.KindPDF)
	require.NoError(t, err)
	assert.Equal(t, document.KindPDF, info.Kind)

	info, err = d.ValidateUpload("deck.pptx", zipBytes(t, "[Content_Types].xml", "ppt/presentation.xml"), document.KindSlides)
	require.NoError(t, err)
	assert.Equal(t, document.KindSlides, info.Kind)

	info, err = d.ValidateUpload("memo.docx", zipBytes(t, "[Content_Types].xml", "word/document.xml"), document.KindWord)
	require.NoError(t, err)
	assert.Equal(t, document.KindWord, info.Kind)
}

func TestValidateUploadRejectsMismatchedContent(t *testing.T) {
	d := New()

	_, err := d.ValidateUpload("fake.pdf", []byte("just some text"), document.KindPDF)
	require.Error(t, err)
	assert.Equal(t, "File content is not a valid .pdf file", document.MessageOf(err))

	_, err = d.ValidateUpload("deck.pptx", pdfBytes, document.KindSlides)
	assert.True(t, document.IsType(err, document.ErrorTypeValidation))

	_, err = d.ValidateUpload("empty.pdf", nil, document.KindPDF)
	assert.Equal(t, "Uploaded file is empty", document.MessageOf(err))
}
