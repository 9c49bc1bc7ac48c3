package formatting

import (
	"encoding/json"
	"fmt"
	"time"
)

// PrettyJSON formats any value as indented JSON for human-readable display.
// It handles marshaling errors gracefully by falling back to fmt.Sprintf.
//
// Example:
//
//	data := map[string]interface{}{"name": "test", "value": 42}
//	fmt.Println(formatting.PrettyJSON(data))
//	// Output:
//	// {
//	//   "name": "test",
//	//   "value": 42
//	// }
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// FormatRemaining renders a time-to-expiry rounded to seconds. Negative
// values read "expired 1m5s ago".
func FormatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < 0:
		return fmt.Sprintf("expired %s ago", (-d).String())
	case d == 0:
		return "now"
	default:
		return d.String()
	}
}
