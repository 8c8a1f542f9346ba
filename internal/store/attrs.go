package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Item is one stored record: attribute name to value. Supported value kinds
// are string, int64, float64, bool, nil, []any, and map[string]any.
type Item map[string]any

// attrValue is the persisted typed encoding of a single attribute. Numbers
// carry their kind through the N field (ints have no decimal point, floats
// always do), so int64 and float64 round-trip distinctly.
type attrValue struct {
	S    *string               `json:"S,omitempty"`
	N    *string               `json:"N,omitempty"`
	Bool *bool                 `json:"BOOL,omitempty"`
	Null bool                  `json:"NULL,omitempty"`
	L    *[]attrValue          `json:"L,omitempty"`
	M    *map[string]attrValue `json:"M,omitempty"`
}

func encodeValue(v any) (attrValue, error) {
	switch x := v.(type) {
	case nil:
		return attrValue{Null: true}, nil
	case bool:
		return attrValue{Bool: &x}, nil
	case string:
		return attrValue{S: &x}, nil
	case int:
		n := strconv.FormatInt(int64(x), 10)
		return attrValue{N: &n}, nil
	case int64:
		n := strconv.FormatInt(x, 10)
		return attrValue{N: &n}, nil
	case float64:
		n := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(n, ".eE") {
			// keep the float kind visible for decoding
			n += ".0"
		}
		return attrValue{N: &n}, nil
	case []any:
		l := make([]attrValue, len(x))
		for i, e := range x {
			ev, err := encodeValue(e)
			if err != nil {
				return attrValue{}, err
			}
			l[i] = ev
		}
		return attrValue{L: &l}, nil
	case map[string]any:
		m := make(map[string]attrValue, len(x))
		for k, e := range x {
			ev, err := encodeValue(e)
			if err != nil {
				return attrValue{}, err
			}
			m[k] = ev
		}
		return attrValue{M: &m}, nil
	default:
		return attrValue{}, fmt.Errorf("unsupported attribute type %T", v)
	}
}

func decodeValue(av attrValue) any {
	switch {
	case av.S != nil:
		return *av.S
	case av.N != nil:
		if i, err := strconv.ParseInt(*av.N, 10, 64); err == nil {
			return i
		}
		f, _ := strconv.ParseFloat(*av.N, 64)
		return f
	case av.Bool != nil:
		return *av.Bool
	case av.L != nil:
		l := make([]any, len(*av.L))
		for i, e := range *av.L {
			l[i] = decodeValue(e)
		}
		return l
	case av.M != nil:
		m := make(map[string]any, len(*av.M))
		for k, e := range *av.M {
			m[k] = decodeValue(e)
		}
		return m
	default:
		return nil
	}
}

func encodeItem(item Item) (string, error) {
	enc := make(map[string]attrValue, len(item))
	for k, v := range item {
		av, err := encodeValue(v)
		if err != nil {
			return "", fmt.Errorf("attribute %q: %w", k, err)
		}
		enc[k] = av
	}
	b, err := json.Marshal(enc)
	if err != nil {
		return "", fmt.Errorf("marshaling attributes: %w", err)
	}
	return string(b), nil
}

func decodeItem(raw string) (Item, error) {
	var enc map[string]attrValue
	if err := json.Unmarshal([]byte(raw), &enc); err != nil {
		return nil, fmt.Errorf("unmarshaling attributes: %w", err)
	}
	item := make(Item, len(enc))
	for k, av := range enc {
		item[k] = decodeValue(av)
	}
	return item, nil
}

// encodeSort canonicalizes a sort key. Integer sorts are zero-padded so that
// lexicographic column order matches numeric order within a partition.
func encodeSort(sort any) (string, error) {
	switch x := sort.(type) {
	case string:
		return x, nil
	case int:
		return fmt.Sprintf("%020d", x), nil
	case int64:
		return fmt.Sprintf("%020d", x), nil
	default:
		return "", fmt.Errorf("unsupported sort key type %T", sort)
	}
}

// intAttr reads an integer attribute, tolerating absence.
func intAttr(item Item, name string) int64 {
	if v, ok := item[name].(int64); ok {
		return v
	}
	return 0
}

func stringAttr(item Item, name string) string {
	if v, ok := item[name].(string); ok {
		return v
	}
	return ""
}

// sortItemsByAttrDesc orders items by a string attribute, newest first.
func sortItemsByAttrDesc(items []Item, attr string) {
	sort.SliceStable(items, func(i, j int) bool {
		return stringAttr(items[i], attr) > stringAttr(items[j], attr)
	})
}
