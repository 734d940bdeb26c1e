package transport

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/taro8383/duracalm-proxy/core"
)

// FilePart is the single binary part of an encoded upload form.
type FilePart struct {
	FieldName   string
	Filename    string
	ContentType string
	Data        []byte
}

// EncodedForm is a fully rendered multipart/form-data body plus the headers
// needed to post it.
type EncodedForm struct {
	Body        []byte
	Boundary    string
	ContentType string
}

// FormDataEncoder renders signed-policy upload forms. Text parameters are
// emitted first, in the exact order given, followed by the one file part;
// object-storage policy checks reject reordered fields.
type FormDataEncoder struct {
	boundary func() string
}

func NewFormDataEncoder() *FormDataEncoder {
	return &FormDataEncoder{boundary: randomBoundary}
}

// NewFormDataEncoderWithBoundary pins the boundary, for deterministic tests.
func NewFormDataEncoderWithBoundary(boundary string) *FormDataEncoder {
	return &FormDataEncoder{boundary: func() string { return boundary }}
}

func (e *FormDataEncoder) Encode(parameters []core.UploadParameter, file FilePart) (EncodedForm, error) {
	if e == nil {
		return EncodedForm{}, transportError(
			"transport: form encoder is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if len(file.Data) == 0 {
		return EncodedForm{}, transportError(
			"transport: form file data is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}

	fieldName := strings.TrimSpace(file.FieldName)
	if fieldName == "" {
		fieldName = "file"
	}
	filename := strings.TrimSpace(file.Filename)
	if filename == "" {
		filename = "upload.bin"
	}
	contentType := strings.TrimSpace(file.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if err := writer.SetBoundary(e.boundary()); err != nil {
		return EncodedForm{}, transportWrapError(
			err,
			goerrors.CategoryInternal,
			"transport: set form boundary",
			http.StatusInternalServerError,
			nil,
		)
	}

	for _, parameter := range parameters {
		name := strings.TrimSpace(parameter.Name)
		if name == "" {
			continue
		}
		if err := writer.WriteField(name, parameter.Value); err != nil {
			return EncodedForm{}, transportWrapError(
				err,
				goerrors.CategoryInternal,
				"transport: write form field",
				http.StatusInternalServerError,
				map[string]any{"field": name},
			)
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return EncodedForm{}, transportWrapError(
			err,
			goerrors.CategoryInternal,
			"transport: create file part",
			http.StatusInternalServerError,
			map[string]any{"field": fieldName},
		)
	}
	if _, err := part.Write(file.Data); err != nil {
		return EncodedForm{}, transportWrapError(
			err,
			goerrors.CategoryInternal,
			"transport: write file part",
			http.StatusInternalServerError,
			map[string]any{"field": fieldName},
		)
	}
	if err := writer.Close(); err != nil {
		return EncodedForm{}, transportWrapError(
			err,
			goerrors.CategoryInternal,
			"transport: finalize form body",
			http.StatusInternalServerError,
			nil,
		)
	}

	return EncodedForm{
		Body:        buf.Bytes(),
		Boundary:    writer.Boundary(),
		ContentType: writer.FormDataContentType(),
	}, nil
}

func randomBoundary() string {
	return "ProxyFormBoundary" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
