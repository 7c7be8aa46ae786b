package household

import "time"

var weekdayLabels = [...]string{"Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag", "Sonntag"}

// WeekdayLabel returns the German name of weekday d (1 = Montag), or "Tag"
// when d is out of range.
func WeekdayLabel(d int) string {
	if d < 1 || d > len(weekdayLabels) {
		return "Tag"
	}
	return weekdayLabels[d-1]
}

// WeekRange returns the Monday 00:00 to Sunday 23:59:59.999 window around t,
// in t's location.
func WeekRange(t time.Time) (from, to time.Time) {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(midnight.Weekday()) + 6) % 7
	from = midnight.AddDate(0, 0, -offset)
	sunday := from.AddDate(0, 0, 6)
	to = time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
	return from, to
}
