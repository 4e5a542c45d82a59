// Package action models the requests a panel page sends and the classified
// outcomes it renders.
package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// Encoding identifies how a request body is serialized.
type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingMultipart
	EncodingJSON
)

func (e Encoding) String() string {
	switch e {
	case EncodingMultipart:
		return "multipart"
	case EncodingJSON:
		return "json"
	default:
		return "none"
	}
}

// Request is an immutable description of one HTTP call.
type Request struct {
	method   string
	path     string
	query    url.Values
	encoding Encoding
	form     Form
	jsonBody []byte
	headers  http.Header
}

// Get builds a GET request.
func Get(path string, query url.Values) Request {
	return Request{method: http.MethodGet, path: path, query: cloneValues(query)}
}

// Delete builds a DELETE request.
func Delete(path string, query url.Values) Request {
	return Request{method: http.MethodDelete, path: path, query: cloneValues(query)}
}

// PostForm builds a multipart POST carrying form.
func PostForm(path string, form Form) Request {
	return Request{method: http.MethodPost, path: path, encoding: EncodingMultipart, form: form.clone()}
}

// PostJSON builds a POST whose body is v encoded as JSON.
func PostJSON(path string, v any) (Request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return Request{method: http.MethodPost, path: path, encoding: EncodingJSON, jsonBody: data}, nil
}

// WithHeader returns a copy of r with an extra header.
func (r Request) WithHeader(key, value string) Request {
	out := r
	out.headers = r.Headers()
	out.headers.Set(key, value)
	return out
}

// WithQuery returns a copy of r with key set in the query string.
func (r Request) WithQuery(key, value string) Request {
	out := r
	out.query = cloneValues(r.query)
	if out.query == nil {
		out.query = url.Values{}
	}
	out.query.Set(key, value)
	return out
}

func (r Request) Method() string     { return r.method }
func (r Request) Path() string       { return r.path }
func (r Request) Encoding() Encoding { return r.encoding }

// Query returns a copy of the query parameters.
func (r Request) Query() url.Values {
	return cloneValues(r.query)
}

// Headers returns a copy of the extra headers.
func (r Request) Headers() http.Header {
	if r.headers == nil {
		return http.Header{}
	}
	return r.headers.Clone()
}

// Target returns path plus encoded query string.
func (r Request) Target() string {
	if len(r.query) == 0 {
		return r.path
	}
	return r.path + "?" + r.query.Encode()
}

// String is used in logs.
func (r Request) String() string {
	return r.method + " " + r.Target()
}

// Body encodes the payload. It is rebuilt on every call so a request can be
// dispatched more than once.
func (r Request) Body() (io.Reader, string, error) {
	switch r.encoding {
	case EncodingJSON:
		return bytes.NewReader(r.jsonBody), "application/json", nil
	case EncodingMultipart:
		return encodeMultipart(r.form)
	default:
		return nil, "", nil
	}
}

func encodeMultipart(form Form) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range form.Fields() {
		if err := w.WriteField(name, form.Value(name)); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	for _, name := range form.FileFields() {
		file := form.files[name]
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(name), quoteEscaper.Replace(file.Name)))
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create part %s: %w", name, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"") //nolint:gochecknoglobals

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
