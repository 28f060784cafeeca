// Package upstream normalizes the remote statistics API payloads into typed values.
// Nothing past this package sees untyped JSON from the remote side.
package upstream

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/Project-Sylos/IndexTree/internal/types"
)

// ErrMalformed reports an upstream payload whose shape cannot be interpreted
var ErrMalformed = errors.New("malformed upstream data")

const datePrefix = "y"

var dateKeyPattern = regexp.MustCompile(`^y[0-9]+$`)

// Record is one node as the remote API reports it
type Record struct {
	ID             string
	Text           string
	Leaf           bool
	DateAttributes map[string]string
	Raw            json.RawMessage
}

// IsDateKey reports whether k names a period-valued attribute
func IsDateKey(k string) bool {
	return dateKeyPattern.MatchString(k)
}

// DateKey returns the attribute key that carries the value of period code
func DateKey(code string) string {
	return datePrefix + code
}

// DecodeRecords splits a tree response into its node records.
// The remote API returns a bare object for singleton results, which is treated as a one-element list.
func DecodeRecords(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.Wrap(ErrMalformed, "empty body")
	}

	switch trimmed[0] {
	case '{':
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "decode list: %v", err)
		}
		for i, item := range list {
			if t := bytes.TrimSpace(item); len(t) == 0 || t[0] != '{' {
				return nil, errors.Wrapf(ErrMalformed, "item %d is not an object", i)
			}
		}
		return list, nil
	default:
		return nil, errors.Wrap(ErrMalformed, "expected object or list")
	}
}

// ParseRecord decodes a single node record
func ParseRecord(raw json.RawMessage) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Record{}, errors.Wrapf(ErrMalformed, "decode record: %v", err)
	}

	id, err := scalarString(fields["id"])
	if err != nil || id == "" {
		return Record{}, errors.Wrap(ErrMalformed, "record without id")
	}

	leaf, err := parseLeaf(fields["leaf"])
	if err != nil {
		return Record{}, errors.Wrapf(err, "record %s", id)
	}

	rec := Record{
		ID:   id,
		Leaf: leaf,
		Raw:  append(json.RawMessage(nil), raw...),
	}
	if text, ok := fields["text"].(string); ok {
		rec.Text = text
	}

	for k, v := range fields {
		if !IsDateKey(k) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if rec.DateAttributes == nil {
			rec.DateAttributes = make(map[string]string)
		}
		rec.DateAttributes[k] = s
	}

	return rec, nil
}

// DateAttributes re-derives the period-valued attributes of a stored payload
func DateAttributes(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "decode payload: %v", err)
	}
	var attrs map[string]string
	for k, v := range fields {
		if s, ok := v.(string); ok && IsDateKey(k) {
			if attrs == nil {
				attrs = make(map[string]string)
			}
			attrs[k] = s
		}
	}
	return attrs, nil
}

// DecodePeriods decodes the period list of an indicator
func DecodePeriods(raw json.RawMessage) (types.PeriodDataset, error) {
	var body struct {
		DateList       []json.RawMessage `json:"dateList"`
		PeriodNameList []json.RawMessage `json:"periodNameList"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return types.PeriodDataset{}, errors.Wrapf(ErrMalformed, "decode periods: %v", err)
	}

	dates, err := scalarList(body.DateList)
	if err != nil {
		return types.PeriodDataset{}, errors.Wrap(err, "dateList")
	}
	names, err := scalarList(body.PeriodNameList)
	if err != nil {
		return types.PeriodDataset{}, errors.Wrap(err, "periodNameList")
	}

	ds := types.PeriodDataset{DateList: dates, PeriodNameList: names}
	if err := ds.Validate(); err != nil {
		return types.PeriodDataset{}, errors.Wrap(ErrMalformed, err.Error())
	}
	return ds, nil
}

func parseLeaf(v any) (bool, error) {
	switch leaf := v.(type) {
	case nil:
		return false, errors.Wrap(ErrMalformed, "missing leaf")
	case bool:
		return leaf, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(leaf)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, errors.Wrapf(ErrMalformed, "unexpected leaf value %v", v)
}

func scalarString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case nil:
		return "", ErrMalformed
	default:
		return "", errors.Wrapf(ErrMalformed, "unexpected scalar %T", v)
	}
}

func scalarList(items []json.RawMessage) ([]string, error) {
	out := make([]string, 0, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			out = append(out, n.String())
			continue
		}
		return nil, errors.Wrapf(ErrMalformed, "item %d: %s", i, strconv.Quote(string(item)))
	}
	return out, nil
}
