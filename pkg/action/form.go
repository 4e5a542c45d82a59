package action

import (
	"sort"
	"strings"
)

// File is a file attached to a form submission.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Form holds the values and files of one form submission.
// The zero value is an empty form ready to use.
type Form struct {
	values map[string]string
	files  map[string]File
}

// NewForm returns a form pre-populated with values.
func NewForm(values map[string]string) Form {
	f := Form{}
	for k, v := range values {
		f = f.With(k, v)
	}
	return f
}

// With returns a copy of f with field set to value.
func (f Form) With(field, value string) Form {
	out := f.clone()
	if out.values == nil {
		out.values = map[string]string{}
	}
	out.values[field] = value
	return out
}

// WithFile returns a copy of f with file attached under file.Field.
func (f Form) WithFile(file File) Form {
	out := f.clone()
	if out.files == nil {
		out.files = map[string]File{}
	}
	out.files[file.Field] = file
	return out
}

// Value returns the raw value of field.
func (f Form) Value(field string) string {
	return f.values[field]
}

// Has reports whether field carries a non-blank value.
func (f Form) Has(field string) bool {
	return strings.TrimSpace(f.values[field]) != ""
}

// File returns the file attached under field.
func (f Form) File(field string) (File, bool) {
	file, ok := f.files[field]
	return file, ok && len(file.Data) > 0
}

// Fields returns the value field names in sorted order.
func (f Form) Fields() []string {
	names := make([]string, 0, len(f.values))
	for k := range f.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FileFields returns the file field names in sorted order.
func (f Form) FileFields() []string {
	names := make([]string, 0, len(f.files))
	for k := range f.files {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (f Form) clone() Form {
	out := Form{}
	if f.values != nil {
		out.values = make(map[string]string, len(f.values))
		for k, v := range f.values {
			out.values[k] = v
		}
	}
	if f.files != nil {
		out.files = make(map[string]File, len(f.files))
		for k, v := range f.files {
			out.files[k] = v
		}
	}
	return out
}

// HasFile reports whether a non-empty file is attached under field.
func (f Form) HasFile(field string) bool {
	_, ok := f.File(field)
	return ok
}
