package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// jsonIDText returns the text form of an id that producers may write either
// as a JSON string or as a JSON number. Integral numbers lose any fraction or
// exponent so 7, 7.0 and "7" all read as "7". null reads as "".
func jsonIDText(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("id must be a string or a number, got %s", data)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	f, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("id %s: %w", n, err)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// UnmarshalJSON accepts a string or a number.
func (id *UserID) UnmarshalJSON(data []byte) error {
	s, err := jsonIDText(data)
	if err != nil {
		return fmt.Errorf("userId: %w", err)
	}
	*id = UserID(s)
	return nil
}

// UnmarshalJSON accepts a number or a string holding an integer.
func (id *NotificationID) UnmarshalJSON(data []byte) error {
	s, err := jsonIDText(data)
	if err != nil {
		return fmt.Errorf("notification id: %w", err)
	}
	if s == "" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("notification id %q is not an integer", s)
	}
	*id = NotificationID(v)
	return nil
}
