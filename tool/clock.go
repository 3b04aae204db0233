package tool

import (
	"context"
	"fmt"
	"time"
)

// NewCurrentTime returns the current_time tool. now is injectable for tests.
func NewCurrentTime(now func() time.Time) *Definition {
	if now == nil {
		now = time.Now
	}
	return &Definition{
		Name:        "current_time",
		Description: "Returns the current date and time, optionally in an IANA timezone such as 'Europe/Paris'.",
		Parameters: ObjectSchema(map[string]string{
			"timezone": "IANA timezone name; UTC when omitted",
		}),
		Execute: func(_ context.Context, args map[string]any) (any, error) {
			loc := time.UTC
			if tz, _ := args["timezone"].(string); tz != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q", tz)
				}
				loc = l
			}
			return now().In(loc).Format(time.RFC3339), nil
		},
	}
}
