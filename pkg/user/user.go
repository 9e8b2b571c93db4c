// Package user holds the roster of people allowed to use the bot and the
// organizational directions they belong to.
package user

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// User is an identified person in the roster. Values are immutable.
type User struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role,omitempty"`
	Handle   string `json:"handle,omitempty"`
}

// FirstName returns the first word of the full name.
func (u User) FirstName() string {
	if f := strings.Fields(u.FullName); len(f) > 0 {
		return f[0]
	}
	return ""
}

// Record is a user together with their direction codes.
type Record struct {
	User       User     `json:"user"`
	Directions []string `json:"directions"`
}

// DirectionAll matches every direction.
const DirectionAll = "all"

// DefaultDirectionLabels are the directions known out of the box.
var DefaultDirectionLabels = map[string]string{
	"all":  "Все направления",
	"stn":  "Социально-творческое направление (СТН)",
	"oan":  "Организационно-аналитическое направление (ОАН)",
	"nmsd": "Направление маркетинга, смм, дизайна (НМСД)",
	"noim": "Направление обучения и методологии (НОиМ)",
	"nnia": "Направление набора и адаптации (ННиА)",
}

var directionAliases = map[string]string{
	"ниа":  "nnia",
	"нна":  "nnia",
	"нниа": "nnia",
	"все":  "all",
}

// Directory is an in-memory, concurrency-safe roster.
type Directory struct {
	mu         sync.RWMutex
	users      map[int64]User
	order      []int64
	directions map[int64][]string
	labels     map[string]string
}

// NewDirectory creates an empty roster with the default direction labels.
func NewDirectory() *Directory {
	d := &Directory{
		users:      make(map[int64]User),
		directions: make(map[int64][]string),
		labels:     make(map[string]string, len(DefaultDirectionLabels)),
	}
	for code, label := range DefaultDirectionLabels {
		d.labels[code] = label
	}
	return d
}

// DefaultRecords is the roster shipped with the bot.
func DefaultRecords() []Record {
	return []Record{
		{User{ID: 1311714242, FullName: "Ольга Храмцова", Role: "Дебошир", Handle: "@gavblya"}, []string{"stn"}},
		{User{ID: 609995295, FullName: "Илья Колпаков", Handle: "@kolpak_i"}, []string{"all"}},
		{User{ID: 459228268, FullName: "Павел Шульгин", Handle: "@Zulgin97"}, []string{"noim"}},
		{User{ID: 5055233726, FullName: "Анастасия", Handle: "@hihiololo"}, []string{"stn"}},
		{User{ID: 7216096348, FullName: "Владислав Уткин", Handle: "@respectoKotE3"}, []string{"stn"}},
		{User{ID: 678543417, FullName: "Дарья Домрачева", Handle: "@danny_gate"}, []string{"nmsd", "oan", "stn"}},
		{User{ID: 5575874649, FullName: "Любовь Зенченко", Handle: "@Lubavaablin"}, []string{"stn", "nnia"}},
		{User{ID: 7247710860, FullName: "Александр Пинаев", Role: "Администратор системы задач"}, []string{"oan", "noim", "nmsd", "nnia"}},
	}
}

// DefaultDirectory returns a roster seeded with DefaultRecords.
func DefaultDirectory() *Directory {
	d := NewDirectory()
	d.Load(DefaultRecords())
	return d
}

// Load adds every record, replacing users already present.
func (d *Directory) Load(records []Record) {
	for _, r := range records {
		d.Add(r.User, r.Directions...)
	}
}

// Add inserts or replaces a user. Direction values may be codes or labels;
// unknown values are dropped.
func (d *Directory) Add(u User, directions ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[u.ID]; !ok {
		d.order = append(d.order, u.ID)
	}
	d.users[u.ID] = u

	var codes []string
	for _, dir := range directions {
		if code, ok := d.normalize(dir); ok {
			codes = append(codes, code)
		}
	}
	d.directions[u.ID] = codes
}

// SetDirectionLabel registers or renames a direction.
func (d *Directory) SetDirectionLabel(code, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.labels[strings.ToLower(strings.TrimSpace(code))] = label
}

// Get returns the user by ID.
func (d *Directory) Get(id int64) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}

// Contains reports whether the user is on the roster.
func (d *Directory) Contains(id int64) bool {
	_, ok := d.Get(id)
	return ok
}

// List returns users in insertion order.
func (d *Directory) List() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]User, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.users[id])
	}
	return out
}

// Records returns users with their direction codes, in insertion order.
func (d *Directory) Records() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Record, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, Record{User: d.users[id], Directions: append([]string(nil), d.directions[id]...)})
	}
	return out
}

// Name returns the user's full name, or the numeric ID for unknown users.
func (d *Directory) Name(id int64) string {
	if u, ok := d.Get(id); ok {
		return u.FullName
	}
	return formatID(id)
}

// DirectionCodes returns the known direction codes sorted, "all" first.
func (d *Directory) DirectionCodes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	codes := make([]string, 0, len(d.labels))
	for code := range d.labels {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if codes[i] == DirectionAll || codes[j] == DirectionAll {
			return codes[i] == DirectionAll
		}
		return codes[i] < codes[j]
	})
	return codes
}

// NormalizeDirection maps a code, a full label, the abbreviation in
// parentheses, the label without it, or a known alias to a direction code.
func (d *Directory) NormalizeDirection(s string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.normalize(s)
}

func (d *Directory) normalize(s string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	if n == "" {
		return "", false
	}
	if _, ok := d.labels[n]; ok {
		return n, true
	}
	for code, label := range d.labels {
		l := strings.ToLower(label)
		if n == l {
			return code, true
		}
		if open := strings.LastIndex(l, "("); open >= 0 {
			if end := strings.Index(l[open:], ")"); end > 0 {
				if n == strings.TrimSpace(l[open+1:open+end]) {
					return code, true
				}
			}
		}
		if n == strings.TrimSpace(strings.SplitN(l, "(", 2)[0]) {
			return code, true
		}
	}
	code, ok := directionAliases[n]
	return code, ok
}

// DirectionLabel returns the human-readable label, or s itself when unknown.
func (d *Directory) DirectionLabel(s string) string {
	code, ok := d.NormalizeDirection(s)
	if !ok {
		return s
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.labels[code]
}

// DirectionTitle is DirectionLabel without the abbreviation in parentheses.
func (d *Directory) DirectionTitle(s string) string {
	label := d.DirectionLabel(s)
	if strings.Contains(label, "(") && strings.Contains(label, ")") {
		return strings.TrimSpace(strings.SplitN(label, "(", 2)[0])
	}
	return label
}

// Directions returns the direction codes of a user.
func (d *Directory) Directions(id int64) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.directions[id]...)
}

// ByDirection lists users of a direction. "all" lists everyone, and members
// of "all" appear in every direction.
func (d *Directory) ByDirection(s string) []User {
	code, ok := d.NormalizeDirection(s)
	if !ok {
		return nil
	}
	if code == DirectionAll {
		return d.List()
	}
	var out []User
	for _, u := range d.List() {
		if d.InDirection(u.ID, code) {
			out = append(out, u)
		}
	}
	return out
}

// InDirection reports whether the user belongs to the direction.
func (d *Directory) InDirection(id int64, s string) bool {
	code, ok := d.NormalizeDirection(s)
	if !ok {
		return false
	}
	for _, c := range d.Directions(id) {
		if c == code || c == DirectionAll {
			return true
		}
	}
	return false
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
