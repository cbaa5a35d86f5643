package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
)

// ErrNoJSON means a reply contained no JSON object.
var ErrNoJSON = errors.New("llm: reply contains no JSON object")

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	fencedAny  = regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")
)

// ExtractObject finds the JSON object in a model reply. A ```json fence
// wins over a bare fence, which wins over the outermost {...} span.
// Comments and trailing commas are stripped from the result.
func ExtractObject(reply string) ([]byte, error) {
	var candidate string
	if m := fencedJSON.FindStringSubmatch(reply); m != nil {
		candidate = m[1]
	} else if m := fencedAny.FindStringSubmatch(reply); m != nil {
		candidate = m[1]
	} else {
		start := strings.Index(reply, "{")
		end := strings.LastIndex(reply, "}")
		if start < 0 || end < start {
			return nil, ErrNoJSON
		}
		candidate = reply[start : end+1]
	}
	return jsonc.ToJSON([]byte(candidate)), nil
}

// DecodeObject extracts the JSON object from reply into v.
func DecodeObject(reply string, v any) error {
	raw, err := ExtractObject(reply)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("llm: decoding reply object: %w", err)
	}
	return nil
}
