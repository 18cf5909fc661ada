package entity

import (
	"fmt"
	"time"
)

func timeRFC3339(d Datetime) string {
	return time.Time(d).UTC().Format("2006-01-02T15:04:05.000Z")
}

func durationLiteral(d Duration) string {
	dur := time.Duration(d)
	if dur == 0 {
		return "0ms"
	}
	ms := dur.Milliseconds()
	neg := ms < 0
	if neg {
		ms = -ms
	}
	s := fmt.Sprintf("%dms", ms)
	if neg {
		return "-" + s
	}
	return s
}
