package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// ErrUnrecognized is returned for payloads that carry no volume intent.
var ErrUnrecognized = errors.New("unrecognized sensor payload")

var phrases = map[string]int{
	"increase":      core.VolumeUp,
	"up":            core.VolumeUp,
	"volume up":     core.VolumeUp,
	"higher volume": core.VolumeUp,
	"decrease":      core.VolumeDown,
	"down":          core.VolumeDown,
	"volume down":   core.VolumeDown,
	"lower volume":  core.VolumeDown,
}

type directionMessage struct {
	Direction string `json:"direction"`
}

// Classify maps a raw sensor payload to a volume intent.
// Plain phrases are matched case-insensitively after trimming; a JSON object
// with a "direction" field is classified by that field.
func Classify(payload []byte) (core.VolumeIntent, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return core.VolumeIntent{}, ErrUnrecognized
	}

	text := string(trimmed)
	if trimmed[0] == '{' {
		var msg directionMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return core.VolumeIntent{}, fmt.Errorf("%w: %v", ErrUnrecognized, err)
		}
		text = msg.Direction
	}

	delta, ok := phrases[strings.ToLower(strings.Join(strings.Fields(text), " "))]
	if !ok {
		return core.VolumeIntent{}, fmt.Errorf("%w: %q", ErrUnrecognized, truncate(text, 32))
	}
	return core.VolumeIntent{Delta: delta}, nil
}

// Phrase is the payload published for a volume delta.
func Phrase(delta int) string {
	if delta < 0 {
		return "Volume down"
	}
	return "Volume up"
}

// truncate cuts s to at most n bytes, backing off to a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
