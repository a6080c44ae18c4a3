package sim

import "strconv"

// Time is simulated time in picoseconds.
type Time int64

// Common durations.
const (
	Picosecond  Time = 1
	Nanosecond       = 1000 * Picosecond
	Microsecond      = 1000 * Nanosecond
)

func (t Time) String() string {
	if t%Nanosecond == 0 {
		return strconv.FormatInt(int64(t/Nanosecond), 10) + "ns"
	}
	return strconv.FormatInt(int64(t), 10) + "ps"
}
