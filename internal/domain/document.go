package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Document is the whole karma store: subject -> JSON value. Values are kept
// as raw JSON so entries this service never touches are written back as-is.
type Document map[string]json.RawMessage

// DecodeDocument parses a stored document. An empty payload or JSON null is
// an empty document; anything that is not a JSON object is malformed.
func DecodeDocument(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Document{}, nil
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Encode serializes the document; a nil document encodes as {}.
func (d Document) Encode() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(map[string]json.RawMessage(d))
	if err != nil {
		return nil, fmt.Errorf("failed to encode karma document: %w", err)
	}
	return data, nil
}

// Karma returns the karma stored under subject. Absent and falsy values
// (null, false, 0, "") count as 0. Numeric strings and true are coerced.
// Anything else yields ErrInvalidKarma.
func (d Document) Karma(subject string) (int64, error) {
	raw, ok := d[subject]
	if !ok {
		return 0, nil
	}

	n, err := parseKarma(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: subject %q: %v", ErrInvalidKarma, subject, err)
	}
	return n, nil
}

// SetKarma stores value under subject as a JSON integer.
func (d Document) SetKarma(subject string, value int64) {
	d[subject] = json.RawMessage(strconv.FormatInt(value, 10))
}

// Standings returns every subject with a valid karma value, highest first,
// ties broken by subject. Subjects with invalid values are returned separately.
func (d Document) Standings() (standings []Standing, invalid []string) {
	standings = make([]Standing, 0, len(d))
	for subject := range d {
		karma, err := d.Karma(subject)
		if err != nil {
			invalid = append(invalid, subject)
			continue
		}
		standings = append(standings, Standing{Subject: subject, Karma: karma})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Karma != standings[j].Karma {
			return standings[i].Karma > standings[j].Karma
		}
		return standings[i].Subject < standings[j].Subject
	})
	sort.Strings(invalid)
	return standings, invalid
}

func parseKarma(raw json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, nil
	}

	switch trimmed[0] {
	case 'n':
		return 0, nil
	case 't':
		return 1, nil
	case 'f':
		return 0, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		return integral(f)
	case '{', '[':
		return 0, fmt.Errorf("unexpected JSON %s", kindOf(trimmed[0]))
	}

	var num json.Number
	if err := json.Unmarshal(trimmed, &num); err != nil {
		return 0, err
	}
	if n, err := num.Int64(); err == nil {
		return n, nil
	}
	f, err := num.Float64()
	if err != nil {
		return 0, err
	}
	return integral(f)
}

func integral(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int64(f), nil
}

func kindOf(b byte) string {
	if b == '{' {
		return "object"
	}
	return "array"
}
