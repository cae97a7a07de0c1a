package serper

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoQuery is returned when the arguments carry no usable query.
var ErrNoQuery = errors.New("missing query")

// ParseQueries reads the "query" argument, which models send either as a
// single string or as a list of strings. Blank entries are dropped. The bool
// reports whether the argument was a list.
func ParseQueries(args json.RawMessage) ([]string, bool, error) {
	res := gjson.ParseBytes(args)
	if !res.IsObject() {
		return nil, false, ErrNoQuery
	}
	q := res.Get("query")
	switch {
	case q.IsArray():
		var out []string
		for _, v := range q.Array() {
			if s := strings.TrimSpace(v.String()); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil, true, ErrNoQuery
		}
		return out, true, nil
	case q.Type == gjson.String:
		s := strings.TrimSpace(q.String())
		if s == "" {
			return nil, false, ErrNoQuery
		}
		return []string{s}, false, nil
	default:
		return nil, false, ErrNoQuery
	}
}
