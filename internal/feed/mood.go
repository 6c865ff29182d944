package feed

import "fmt"

// Mood is the feeling a post reports.
type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodOkay     Mood = "okay"
	MoodAnxious  Mood = "anxious"
	MoodSad      Mood = "sad"
	MoodStressed Mood = "stressed"
)

// Moods lists every valid mood in display order.
var Moods = []Mood{MoodHappy, MoodOkay, MoodAnxious, MoodSad, MoodStressed}

var displayNames = map[Mood]string{
	MoodHappy:    "Happy",
	MoodOkay:     "Okay",
	MoodAnxious:  "Anxious",
	MoodSad:      "Sad",
	MoodStressed: "Stressed",
}

func ParseMood(s string) (Mood, error) {
	m := Mood(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMood, s)
	}
	return m, nil
}

func (m Mood) Valid() bool {
	_, ok := displayNames[m]
	return ok
}

func (m Mood) DisplayName() string {
	return displayNames[m]
}
