package combine

import "fmt"

// Date is a calendar day encoded as an unseparated 8-digit numeral,
// year*10000 + month*100 + day (e.g. 20010131). Inputs carry dates in this
// form and outputs pass them through unchanged; calendar components are
// derived arithmetically because generic date parsing is too slow for the
// row counts involved.
type Date int

// ParseDate converts an 8-digit token into a Date. Anything other than
// exactly eight ASCII digits is rejected.
func ParseDate(token string) (Date, error) {
	if len(token) != 8 {
		return 0, fmt.Errorf("date token %q is not an 8-digit numeral", token)
	}
	n := 0
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("date token %q is not an 8-digit numeral", token)
		}
		n = n*10 + int(c-'0')
	}
	return Date(n), nil
}

// Year returns the calendar year component.
func (d Date) Year() int { return int(d) / 10000 }

// Month returns the calendar month component.
func (d Date) Month() int { return int(d) / 100 % 100 }

// Day returns the day-of-month component.
func (d Date) Day() int { return int(d) % 100 }

// String renders the date back into its 8-digit form.
func (d Date) String() string { return fmt.Sprintf("%08d", int(d)) }

// Ordinal returns the date's position in a continuous day count (days since
// 1970-01-01), so the gap between two dates is the difference of their
// ordinals. Uses the days-from-civil algorithm; no time package involved.
func (d Date) Ordinal() int {
	y, m, day := d.Year(), d.Month(), d.Day()
	if m <= 2 {
		y--
	}
	era := y / 400
	yoe := y - era*400
	var doy int
	if m > 2 {
		doy = (153*(m-3)+2)/5 + day - 1
	} else {
		doy = (153*(m+9)+2)/5 + day - 1
	}
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}
