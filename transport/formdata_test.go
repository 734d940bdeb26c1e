package transport

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/taro8383/duracalm-proxy/core"
)

func TestFormDataEncoder_PreservesFieldOrder(t *testing.T) {
	encoder := NewFormDataEncoderWithBoundary("TestBoundary1234")

	form, err := encoder.Encode(
		[]core.UploadParameter{
			{Name: "key", Value: "tmp/uploads/hero.jpg"},
			{Name: "policy", Value: "signed-policy-blob"},
			{Name: "x-goog-signature", Value: "sig"},
		},
		FilePart{
			FieldName:   "file",
			Filename:    "hero.jpg",
			ContentType: "image/jpeg",
			Data:        []byte{0xFF, 0xD8, 0xFF},
		},
	)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if form.Boundary != "TestBoundary1234" {
		t.Fatalf("expected pinned boundary, got %q", form.Boundary)
	}

	mediaType, params, err := mime.ParseMediaType(form.ContentType)
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/form-data" {
		t.Fatalf("expected multipart/form-data, got %q", mediaType)
	}
	if params["boundary"] != form.Boundary {
		t.Fatalf("content type boundary %q does not match %q", params["boundary"], form.Boundary)
	}

	reader := multipart.NewReader(bytes.NewReader(form.Body), form.Boundary)
	var order []string
	var fileContentType string
	var fileData []byte
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		order = append(order, part.FormName())
		if part.FormName() == "file" {
			fileContentType = part.Header.Get("Content-Type")
			fileData, err = io.ReadAll(part)
			if err != nil {
				t.Fatalf("read file part: %v", err)
			}
			if part.FileName() != "hero.jpg" {
				t.Fatalf("expected filename hero.jpg, got %q", part.FileName())
			}
		}
	}

	want := []string{"key", "policy", "x-goog-signature", "file"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("part order %v, want %v", order, want)
	}
	if fileContentType != "image/jpeg" {
		t.Fatalf("expected file content type image/jpeg, got %q", fileContentType)
	}
	if !bytes.Equal(fileData, []byte{0xFF, 0xD8, 0xFF}) {
		t.Fatalf("file bytes corrupted: %v", fileData)
	}
}

func TestFormDataEncoder_DefaultsAndValidation(t *testing.T) {
	encoder := NewFormDataEncoder()

	if _, err := encoder.Encode(nil, FilePart{}); err == nil {
		t.Fatalf("expected error for empty file data")
	}

	form, err := encoder.Encode(nil, FilePart{Data: []byte("x")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	reader := multipart.NewReader(bytes.NewReader(form.Body), form.Boundary)
	part, err := reader.NextPart()
	if err != nil {
		t.Fatalf("next part: %v", err)
	}
	if part.FormName() != "file" {
		t.Fatalf("expected default field name file, got %q", part.FormName())
	}
	if part.Header.Get("Content-Type") != "application/octet-stream" {
		t.Fatalf("expected octet-stream default, got %q", part.Header.Get("Content-Type"))
	}
}

func TestFormDataEncoder_FreshBoundaryPerEncode(t *testing.T) {
	encoder := NewFormDataEncoder()
	first, err := encoder.Encode(nil, FilePart{Data: []byte("a")})
	if err != nil {
		t.Fatalf("first encode: %v", err)
	}
	second, err := encoder.Encode(nil, FilePart{Data: []byte("b")})
	if err != nil {
		t.Fatalf("second encode: %v", err)
	}
	if first.Boundary == second.Boundary {
		t.Fatalf("expected a fresh boundary per encode, both were %q", first.Boundary)
	}
}
