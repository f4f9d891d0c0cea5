package format

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// WriteEDN writes the subset of EDN needed for documents and state dumps:
// maps with keyword keys, vectors, strings, numbers, booleans and nil.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	x, err := viaJSON(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := ednEncoder{pretty: pretty, indent: 2}
	enc.value(&buf, x, 0)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

type ednEncoder struct {
	pretty bool
	indent int
}

func (e ednEncoder) value(buf *bytes.Buffer, v any, level int) {
	switch t := v.(type) {
	case nil:
		buf.WriteString("nil")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case string:
		buf.WriteString(strconv.Quote(t))
	case float64:
		// Selection indices and the -1 head sentinel print as integers.
		if t == float64(int64(t)) {
			buf.WriteString(strconv.FormatInt(int64(t), 10))
			return
		}
		buf.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case []any:
		e.collection(buf, '[', ']', len(t), level, func(i int) {
			e.value(buf, t[i], level+1)
		})
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.collection(buf, '{', '}', len(keys), level, func(i int) {
			buf.WriteString(keyword(keys[i]))
			buf.WriteByte(' ')
			e.value(buf, t[keys[i]], level+1)
		})
	default:
		buf.WriteString(strconv.Quote(fmt.Sprint(v)))
	}
}

func (e ednEncoder) collection(buf *bytes.Buffer, start, end byte, n, level int, item func(i int)) {
	buf.WriteByte(start)
	if n == 0 {
		buf.WriteByte(end)
		return
	}
	for i := 0; i < n; i++ {
		switch {
		case e.pretty:
			buf.WriteByte('\n')
			buf.WriteString(strings.Repeat(" ", (level+1)*e.indent))
		case i > 0:
			buf.WriteByte(' ')
		}
		item(i)
	}
	if e.pretty {
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat(" ", level*e.indent))
	}
	buf.WriteByte(end)
}

// keyword renders a map key as an EDN keyword, falling back to a string key
// when the name cannot be a keyword (empty, or starting with a digit).
func keyword(k string) string {
	k = strings.ReplaceAll(strings.TrimSpace(k), " ", "-")
	if k == "" || (k[0] >= '0' && k[0] <= '9') {
		return strconv.Quote(k)
	}
	return ":" + k
}
