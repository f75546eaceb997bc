// Package frontmatter encodes and decodes the "key: value" header that opens
// every post file.
//
// A header is a line of exactly three hyphens, zero or more key: value lines,
// and a closing line of three hyphens. Values decode to bool, []string or
// string. Decoding never fails: anything that is not a well-formed header is
// returned untouched as body.
package frontmatter

import (
	"encoding/json"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const delim = "---"

// Metadata is an insertion-ordered mapping of header keys to values.
type Metadata struct {
	m *orderedmap.OrderedMap[string, any]
}

// New returns empty metadata.
func New() *Metadata {
	return &Metadata{m: orderedmap.New[string, any]()}
}

// Set stores v under key. Re-setting a key keeps its original position.
func (md *Metadata) Set(key string, v any) {
	md.m.Set(key, v)
}

// Get returns the raw value for key.
func (md *Metadata) Get(key string) (any, bool) {
	return md.m.Get(key)
}

// Delete removes key.
func (md *Metadata) Delete(key string) {
	md.m.Delete(key)
}

// Len returns the number of keys.
func (md *Metadata) Len() int {
	return md.m.Len()
}

// Keys returns keys in insertion order.
func (md *Metadata) Keys() []string {
	keys := make([]string, 0, md.m.Len())
	for p := md.m.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// String returns the value for key when it is a non-empty string.
func (md *Metadata) String(key string) string {
	v, ok := md.m.Get(key)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return fmt.Sprint(s)
	}
	return ""
}

// Strings returns the value for key as a string sequence. A sequence is
// returned as is; a plain string is split on commas. Elements are trimmed
// and empty elements dropped.
func (md *Metadata) Strings(key string) []string {
	v, ok := md.m.Get(key)
	if !ok {
		return []string{}
	}
	switch s := v.(type) {
	case []string:
		return Normalize(s)
	case string:
		return SplitList(s)
	}
	return []string{}
}

// Bool returns the value for key when it is a boolean.
func (md *Metadata) Bool(key string) (bool, bool) {
	v, ok := md.m.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Equal reports whether both mappings hold the same keys, order and values.
func (md *Metadata) Equal(other *Metadata) bool {
	if md.Len() != other.Len() {
		return false
	}
	a, b := md.m.Oldest(), other.m.Oldest()
	for ; a != nil && b != nil; a, b = a.Next(), b.Next() {
		if a.Key != b.Key || !valueEqual(a.Value, b.Value) {
			return false
		}
	}
	return true
}

// SplitList splits a comma-separated list, trimming whitespace and dropping
// empty elements.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return Normalize(strings.Split(s, ","))
}

// Normalize trims every element and drops the empty ones.
func Normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func valueEqual(a, b any) bool {
	as, aok := a.([]string)
	bs, bok := b.([]string)
	if aok || bok {
		if !aok || !bok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

// Decode splits text into its header and body.
func Decode(text string) (*Metadata, string) {
	md := New()

	first, rest, ok := cutLine(text)
	if !ok || trimCR(first) != delim {
		return md, text
	}

	var lines []string
	for {
		line, next, found := cutLine(rest)
		if !found {
			if trimCR(line) == delim {
				rest = ""
				break
			}
			return New(), text
		}
		if trimCR(line) == delim {
			rest = next
			break
		}
		lines = append(lines, line)
		rest = next
	}

	for _, line := range lines {
		key, raw, found := strings.Cut(trimCR(line), ":")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		md.Set(key, decodeValue(strings.TrimSpace(raw)))
	}

	// Encode output is separated from the body by one blank line.
	if strings.HasPrefix(rest, "\r\n") {
		rest = rest[2:]
	} else if strings.HasPrefix(rest, "\n") {
		rest = rest[1:]
	}
	return md, rest
}

func decodeValue(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}

	if len(raw) >= 2 && raw[0] == '[' && raw[len(raw)-1] == ']' {
		var items []any
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			out := make([]string, 0, len(items))
			for _, it := range items {
				if s, ok := it.(string); ok {
					out = append(out, s)
				} else {
					out = append(out, fmt.Sprint(it))
				}
			}
			return out
		}
		inner := raw[1 : len(raw)-1]
		if strings.TrimSpace(inner) == "" {
			return []string{}
		}
		parts := strings.Split(inner, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}

	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return unescape(raw[1 : len(raw)-1])
	}
	return unquote(raw)
}

func unquote(s string) string {
	if len(s) >= 2 {
		q := s[0]
		if (q == '"' || q == '\'') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Encode renders md as a delimited header block without a trailing newline.
// Strings are double-quoted with backslash, CR and LF escaped so that a value
// always stays on its own line.
func Encode(md *Metadata) string {
	var b strings.Builder
	b.WriteString(delim)
	b.WriteByte('\n')
	for p := md.m.Oldest(); p != nil; p = p.Next() {
		b.WriteString(p.Key)
		b.WriteString(": ")
		b.WriteString(encodeValue(p.Value))
		b.WriteByte('\n')
	}
	b.WriteString(delim)
	return b.String()
}

func encodeValue(v any) string {
	switch val := v.(type) {
	case []string:
		quoted := make([]string, len(val))
		for i, s := range val {
			quoted[i] = quoteJSON(s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	case string:
		return `"` + escaper.Replace(val) + `"`
	default:
		return fmt.Sprint(val)
	}
}

// quoteJSON quotes s so that the bracketed list decodes through JSON.
func quoteJSON(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return `"` + escaper.Replace(s) + `"`
	}
	return string(data)
}

var escaper = strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`)

// unescape reverses escaper. Other backslash sequences are kept as written.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case 'r':
				b.WriteByte('\r')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Compose joins an encoded header and a body with one blank line.
func Compose(md *Metadata, body string) string {
	return Encode(md) + "\n\n" + body
}

func cutLine(s string) (line, rest string, ok bool) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

func trimCR(s string) string {
	return strings.TrimSuffix(s, "\r")
}
