package qq

import (
	"bytes"
	"strconv"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"
)

// Timestamp is a point in time as sent by the platform. The platform uses
// RFC3339 strings for most resources and unix seconds for robot events.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, nullData) {
		t.Time = time.Time{}

		return nil
	}

	if len(data) > 0 && data[0] != '"' {
		seconds, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return err
		}

		t.Time = time.Unix(seconds, 0).UTC()

		return nil
	}

	var str string
	if err := sandwichjson.Unmarshal(data, &str); err != nil {
		return err
	}

	if str == "" {
		t.Time = time.Time{}

		return nil
	}

	if seconds, err := strconv.ParseInt(str, 10, 64); err == nil {
		t.Time = time.Unix(seconds, 0).UTC()

		return nil
	}

	parsed, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}

	t.Time = parsed

	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return nullData, nil
	}

	return []byte(strconv.Quote(t.Format(time.RFC3339))), nil
}
