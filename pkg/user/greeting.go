package user

import (
	"fmt"
	"log"
	"time"
	_ "time/tzdata"
)

// AccessDenied is shown to anyone not on the roster.
const AccessDenied = "Доступ ограничен. Обратитесь к администратору системы задач."

// Moscow is the zone greetings are computed in.
var Moscow = loadMoscow()

func loadMoscow() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

type greetingRange struct {
	from, to int // minutes since midnight, inclusive
	text     string
}

var greetingRanges = []greetingRange{
	{5 * 60, 10*60 + 59, "Доброе утро"},
	{11 * 60, 16*60 + 59, "Добрый день"},
	{17 * 60, 22*60 + 59, "Добрый вечер"},
	{23 * 60, 23*60 + 59, "Доброй ночи"},
	{0, 4*60 + 59, "Доброй ночи"},
}

// TimeOfDayGreeting picks the salutation for the wall-clock time in loc.
func TimeOfDayGreeting(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = Moscow
	}
	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()
	for _, r := range greetingRanges {
		if minute >= r.from && minute <= r.to {
			return r.text
		}
	}
	return "Здравствуйте"
}

// Greet greets a roster member by first name. Unknown users get AccessDenied
// and ok=false; the attempt is logged.
func (d *Directory) Greet(id int64, now time.Time, loc *time.Location) (msg string, ok bool) {
	u, found := d.Get(id)
	if !found {
		log.Printf("user: access attempt from unknown user %d", id)
		return AccessDenied, false
	}
	return fmt.Sprintf("%s, %s!", TimeOfDayGreeting(now, loc), u.FirstName()), true
}
