package testutil

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
)

// MultipartBody builds a multipart form with one file part plus fields.
// It returns the body and its Content-Type header.
func MultipartBody(t interface {
	Helper()
	Fatalf(string, ...any)
}, field, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, w.FormDataContentType()
}

// FileHeader returns a parsed multipart file header holding data.
func FileHeader(t interface {
	Helper()
	Fatalf(string, ...any)
}, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()
	body, ct := MultipartBody(t, "file", filename, contentType, data, nil)
	_, params, err := parseBoundary(ct)
	if err != nil {
		t.Fatalf("boundary: %v", err)
	}
	form, err := multipart.NewReader(body, params).ReadForm(int64(len(data)) + 1<<20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	files := form.File["file"]
	if len(files) != 1 {
		t.Fatalf("expected one file part, got %d", len(files))
	}
	return files[0]
}

func parseBoundary(contentType string) (string, string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", "", err
	}
	return mediaType, params["boundary"], nil
}
