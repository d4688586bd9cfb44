package codec

import "time"

// The dutc timestamp counts 1/65536-second ticks since the Mac epoch,
// 1904-01-01T00:00:00Z. The host epoch offset is applied exactly with
// no timezone adjustment.
const (
	macEpochOffsetSeconds = 2082844800 // seconds from 1904-01-01 to 1970-01-01
	ticksPerSecond        = 65536
)

// TimeToTicks converts a wall-clock time to Mac-epoch ticks,
// including the sub-second fraction.
func TimeToTicks(t time.Time) int64 {
	ticks := (t.Unix() + macEpochOffsetSeconds) * ticksPerSecond
	ticks += int64(t.Nanosecond()) * ticksPerSecond / int64(time.Second)
	return ticks
}

// TicksToTime converts Mac-epoch ticks to a wall-clock time in UTC.
func TicksToTime(ticks int64) time.Time {
	secs := ticks/ticksPerSecond - macEpochOffsetSeconds
	frac := ticks % ticksPerSecond
	if frac < 0 {
		frac += ticksPerSecond
		secs--
	}
	nanos := frac * int64(time.Second) / ticksPerSecond
	return time.Unix(secs, nanos).UTC()
}
