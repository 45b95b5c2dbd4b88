package wordprocessor

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sizes of the placeholder images shipped in old ODT templates. Members of
// these sizes are replaced by the image of the record.
var placeholderImageSizes = map[uint64]bool{
	2897: true,
	7701: true,
}

var (
	ErrUnsupportedTemplate = errors.New("unsupported template type")
)

// Template is a document template, its Name ends with .html or .odt.
type Template struct {
	Name    string
	Content []byte
}

// SubstituteTemplate fills the template with tags and returns the new
// document. For ODT templates only content.xml is substituted and image is
// put in place of the placeholder images if it is not nil.
func SubstituteTemplate(tpl Template, tags Tags, image []byte) ([]byte, error) {
	name := strings.ToLower(tpl.Name)
	switch {
	case strings.HasSuffix(name, ".html"):
		body := strings.Replace(string(tpl.Content), "signature:user", XMLOpener+"UserSignatureSrc"+XMLCloser, -1)
		return []byte(SubstituteTags(body, tags, true, XMLOpener, XMLCloser)), nil
	case strings.HasSuffix(name, ".odt"):
		out, err := substituteODT(tpl.Content, tags, image)
		if err != nil {
			return nil, fmt.Errorf("failed generating odt document: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedTemplate, tpl.Name)
}

func substituteODT(content []byte, tags Tags, image []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		switch {
		case f.Name == "content.xml":
			data = []byte(SubstituteTags(string(data), tags, true, XMLOpener, XMLCloser))
		case image != nil && placeholderImageSizes[f.UncompressedSize64]:
			data = image
		}
		// mimetype must stay stored for the document to open
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   f.Method,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
