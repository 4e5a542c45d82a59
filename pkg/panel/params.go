package panel

import (
	"fmt"
	"net/url"
	"strings"
)

// Params reads the query string of the page a panel view was opened on.
type Params struct {
	values url.Values
}

// ParseParams accepts a page URL ("/backend/treasures/media/?treasure_id=x")
// or a bare query string ("treasure_id=x").
func ParseParams(raw string) (Params, error) {
	q := raw
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		q = raw[i+1:]
	} else if !strings.Contains(raw, "=") {
		q = ""
	}
	if i := strings.IndexByte(q, '#'); i >= 0 {
		q = q[:i]
	}

	values, err := url.ParseQuery(q)
	if err != nil {
		return Params{}, fmt.Errorf("invalid query in %q: %w", raw, err)
	}
	return Params{values: values}, nil
}

// Param returns the first value of name.
func (p Params) Param(name string) (string, bool) {
	vs, ok := p.values[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// TreasureID returns the treasure_id parameter.
func (p Params) TreasureID() (string, bool) {
	return p.Param("treasure_id")
}
