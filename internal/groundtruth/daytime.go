package groundtruth

import "time"

// IsDaytime reports whether the capture time-of-day falls inside the
// sunrise..sunset window. All three instants are compared as minutes since
// midnight in UTC so the comparison stays in one frame. At high latitudes
// (and for some timezone offsets) the sunset time-of-day can be numerically
// smaller than sunrise; the window then spans midnight and the test flips to
// a disjunction.
func IsDaytime(capture, sunrise, sunset time.Time) bool {
	c := minutesOfDay(capture)
	r := minutesOfDay(sunrise)
	s := minutesOfDay(sunset)

	if s > r {
		return c >= r && c <= s
	}
	return c >= r || c <= s
}

func minutesOfDay(t time.Time) int {
	utc := t.UTC()
	return utc.Hour()*60 + utc.Minute()
}
