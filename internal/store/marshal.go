package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Payload is an opaque captured signal.
//
// It serializes as a JSON array of integers 0-255 rather than the base64
// string encoding/json uses for []byte. On decode it also accepts the
// object form {"0":38,"1":0,...} written by older command files.
type Payload []byte

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(p)*4 + 2)
	buf.WriteByte('[')
	for i, b := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(b)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Payload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("payload: empty value")
	}

	switch data[0] {
	case '[':
		var values []json.Number
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		out := make(Payload, len(values))
		for i, v := range values {
			b, err := toByte(v)
			if err != nil {
				return fmt.Errorf("payload[%d]: %w", i, err)
			}
			out[i] = b
		}
		*p = out
		return nil

	case '{':
		var values map[string]json.Number
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		type indexed struct {
			idx int
			val json.Number
		}
		items := make([]indexed, 0, len(values))
		for k, v := range values {
			idx, err := strconv.Atoi(k)
			if err != nil || idx < 0 {
				return fmt.Errorf("payload: invalid index %q", k)
			}
			items = append(items, indexed{idx: idx, val: v})
		}
		sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })

		out := make(Payload, len(items))
		for i, it := range items {
			b, err := toByte(it.val)
			if err != nil {
				return fmt.Errorf("payload[%d]: %w", it.idx, err)
			}
			out[i] = b
		}
		*p = out
		return nil
	}

	return fmt.Errorf("payload: unsupported JSON value %q", truncate(data, 16))
}

func toByte(n json.Number) (byte, error) {
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %s", n)
	}
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("out of range: %d", v)
	}
	return byte(v), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// recordJSON is the on-disk form of a Record. Cmd is a pointer so a missing
// or null payload field can be told apart from an empty one.
type recordJSON struct {
	Name string   `json:"name"`
	Cmd  *Payload `json:"cmd"`
}

// marshalRecords serializes records in store order.
func marshalRecords(records []Record) ([]byte, error) {
	out := make([]recordJSON, len(records))
	for i := range records {
		p := records[i].Payload
		if p == nil {
			p = Payload{}
		}
		out[i] = recordJSON{Name: records[i].Name, Cmd: &p}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal commands: %w", err)
	}
	return data, nil
}

// unmarshalRecords parses a command file and checks that every record has a
// non-empty name and a payload field.
func unmarshalRecords(data []byte) ([]Record, error) {
	var raw []recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse commands: %w", err)
	}
	if raw == nil {
		return nil, errors.New("parse commands: not a JSON array")
	}

	records := make([]Record, 0, len(raw))
	for i, r := range raw {
		if r.Name == "" {
			return nil, fmt.Errorf("record %d: missing name", i)
		}
		if r.Cmd == nil {
			return nil, fmt.Errorf("record %d (%s): missing cmd", i, r.Name)
		}
		records = append(records, Record{Name: r.Name, Payload: *r.Cmd})
	}
	return records, nil
}

// validateSnapshot checks a freshly written temp file before it replaces the
// live file. want is the number of records that were written.
func validateSnapshot(data []byte, want int) error {
	records, err := unmarshalRecords(data)
	if err != nil {
		return fmt.Errorf("validate temp file: %w", err)
	}
	if len(records) != want {
		return fmt.Errorf("validate temp file: %d records, wrote %d", len(records), want)
	}
	return nil
}
