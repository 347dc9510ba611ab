// Package reltime parses natural language time offsets such as "in 2 days",
// "3 hours 20 minutes ago" or "now".
package reltime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Direction tells if a parsed offset points to the future, the past or the
// present.
type Direction int8

// Directions returned by [Parse].
const (
	Past Direction = iota - 1
	Present
	Future
)

// ErrRelativeTime is returned for text that is not a valid offset. Info is
// the human readable reason.
type ErrRelativeTime struct {
	Info string
}

func (e ErrRelativeTime) Error() string { return e.Info }

// maxSeconds is the largest offset a [time.Duration] can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

var errTooLarge = ErrRelativeTime{Info: "Time offset is too large."}

var units = map[string]int64{
	"yr": 31536000, "yrs": 31536000, "year": 31536000, "years": 31536000,
	"wk": 604800, "wks": 604800, "week": 604800, "weeks": 604800,
	"d": 86400, "day": 86400, "days": 86400,
	"hr": 3600, "hrs": 3600, "hour": 3600, "hours": 3600,
	"min": 60, "mins": 60, "minute": 60, "minutes": 60,
	"sec": 1, "secs": 1, "second": 1, "seconds": 1,
}

// Parse resolves text against now.
func Parse(text string, now time.Time) (time.Time, Direction, error) {
	text = strings.ToLower(text)
	parts := strings.Fields(text)

	future := len(parts) > 0 && parts[0] == "in"
	past := len(parts) > 0 && parts[len(parts)-1] == "ago"

	if !future && !past && text != "now" {
		return time.Time{}, 0, ErrRelativeTime{Info: "Time should either start with 'in' or end with 'ago'"}
	}
	if future && past {
		return time.Time{}, 0, ErrRelativeTime{Info: "Time cannot have both 'in' and 'ago'"}
	}

	switch {
	case future:
		parts = parts[1:]
	case past:
		parts = parts[:len(parts)-1]
	default:
		parts = nil
	}

	if len(parts)%2 != 0 {
		return time.Time{}, 0, ErrRelativeTime{Info: "Invalid time string. Dangling unit or number."}
	}

	var seconds int64
	for n := 0; n < len(parts); n += 2 {
		amount, err := strconv.ParseInt(parts[n], 10, 64)
		if err != nil {
			return time.Time{}, 0, ErrRelativeTime{Info: fmt.Sprintf("'%s' is not an integer.", parts[n])}
		}
		mult, ok := units[parts[n+1]]
		if !ok {
			return time.Time{}, 0, ErrRelativeTime{Info: fmt.Sprintf("Invalid interval: '%s'", parts[n+1])}
		}
		if amount > maxSeconds/mult || amount < -maxSeconds/mult {
			return time.Time{}, 0, errTooLarge
		}
		seconds += amount * mult
		if seconds > maxSeconds || seconds < -maxSeconds {
			return time.Time{}, 0, errTooLarge
		}
	}

	offset := time.Duration(seconds) * time.Second
	switch {
	case future:
		return now.Add(offset), Future, nil
	case past:
		return now.Add(-offset), Past, nil
	default:
		return now, Present, nil
	}
}
