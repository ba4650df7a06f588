package model

import "time"

// TimestampLayout is the wire format for event timestamps: local time,
// second precision, no zone offset.
const TimestampLayout = "2006-01-02T15:04:05"

// Timestamp formats t in the wire layout.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Now returns the current local time in the wire layout.
func Now() string {
	return Timestamp(time.Now())
}
