package contacts

import (
	"slices"
	"time"
)

// Relation classifies a contact.
type Relation string

const (
	RelationFamily          Relation = "family"
	RelationFriend          Relation = "friend"
	RelationColleague       Relation = "colleague"
	RelationBusinessPartner Relation = "business_partner"
	RelationNetwork         Relation = "network"
)

// Relations lists every relation in display order.
var Relations = []Relation{RelationFamily, RelationFriend, RelationColleague, RelationBusinessPartner, RelationNetwork}

var relationLabels = map[Relation]string{
	RelationFamily:          "Familie",
	RelationFriend:          "Freund",
	RelationColleague:       "Kollege",
	RelationBusinessPartner: "Business Partner",
	RelationNetwork:         "Network",
}

func (r Relation) Valid() bool { return slices.Contains(Relations, r) }

// Label returns the German display name, or the raw value if unknown.
func (r Relation) Label() string { return labelOr(relationLabels, r) }

// Activity is a way of keeping in touch.
type Activity string

const (
	ActivityWhatsApp  Activity = "whatsapp"
	ActivityCall      Activity = "call"
	ActivityEmail     Activity = "email"
	ActivityMeeting   Activity = "meeting"
	ActivityVideoCall Activity = "video_call"
)

// Activities lists every activity in display order. Stats follow this order.
var Activities = []Activity{ActivityWhatsApp, ActivityCall, ActivityEmail, ActivityMeeting, ActivityVideoCall}

var activityLabels = map[Activity]string{
	ActivityWhatsApp:  "WhatsApp Nachricht",
	ActivityCall:      "Anruf",
	ActivityEmail:     "E-Mail",
	ActivityMeeting:   "Treffen",
	ActivityVideoCall: "Video Call",
}

func (a Activity) Valid() bool { return slices.Contains(Activities, a) }

// Label returns the German display name, or the raw value if unknown.
func (a Activity) Label() string { return labelOr(activityLabels, a) }

// Cadence is how often an activity is planned.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// Cadences lists every cadence in display order.
var Cadences = []Cadence{CadenceDaily, CadenceWeekly}

var cadenceLabels = map[Cadence]string{
	CadenceDaily:  "Täglich",
	CadenceWeekly: "Wöchentlich",
}

func (c Cadence) Valid() bool { return slices.Contains(Cadences, c) }

// Label returns the German display name, or the raw value if unknown.
func (c Cadence) Label() string { return labelOr(cadenceLabels, c) }

func labelOr[K ~string](labels map[K]string, k K) string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

// Person is a contact.
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Relation  Relation  `json:"relation"`
	Note      *string   `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Assignment plans one activity at one cadence for a person. The
// (PersonID, Activity, Cadence) triple is unique.
type Assignment struct {
	ID        string    `json:"id"`
	PersonID  string    `json:"personId"`
	Activity  Activity  `json:"activity"`
	Cadence   Cadence   `json:"cadence"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Log records one interaction. Logs are append-only.
type Log struct {
	ID        string    `json:"id"`
	PersonID  string    `json:"personId"`
	Activity  Activity  `json:"activity"`
	Note      *string   `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// PersonDefinition is a person with their assignments, sorted by cadence
// and then activity.
type PersonDefinition struct {
	Person
	Assignments []Assignment `json:"assignments"`
}

// State is the contacts document as stored on disk.
type State struct {
	Version     int          `json:"version"`
	Persons     []Person     `json:"persons"`
	Assignments []Assignment `json:"assignments"`
	Logs        []Log        `json:"logs"`
}

// ContactInput describes a new contact.
type ContactInput struct {
	Name     string   `json:"name"`
	Relation Relation `json:"relation"`
	Note     *string  `json:"note"`
}

// ContactPatch lists the contact fields to change. Nil fields are left
// alone; ClearNote removes the note.
type ContactPatch struct {
	Name      *string   `json:"name,omitempty"`
	Relation  *Relation `json:"relation,omitempty"`
	Note      *string   `json:"note,omitempty"`
	ClearNote bool      `json:"clearNote,omitempty"`
}

// LogInput describes an interaction to record.
type LogInput struct {
	PersonID string   `json:"personId"`
	Activity Activity `json:"activity"`
	Note     *string  `json:"note"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Version:     s.Version,
		Persons:     make([]Person, len(s.Persons)),
		Assignments: append([]Assignment{}, s.Assignments...),
		Logs:        make([]Log, len(s.Logs)),
	}
	for i, p := range s.Persons {
		p.Note = cloneString(p.Note)
		out.Persons[i] = p
	}
	for i, l := range s.Logs {
		l.Note = cloneString(l.Note)
		out.Logs[i] = l
	}
	return out
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
