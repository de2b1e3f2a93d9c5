package timetable

import "strings"

// Words kept lowercase when title-casing course names, unless they lead
// the title.
var smallWords = map[string]bool{
	"a": true, "an": true, "and": true, "at": true, "for": true,
	"in": true, "of": true, "on": true, "or": true, "the": true, "to": true,
}

// Roman numerals kept uppercase (course levels like "Physics II").
var romanNumerals = map[string]bool{
	"I": true, "II": true, "III": true, "IV": true, "V": true,
}

// TitleCase normalizes an all-caps course title from the sheet.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		upper := strings.ToUpper(w)
		lower := strings.ToLower(w)
		switch {
		case romanNumerals[upper]:
			words[i] = upper
		case i > 0 && smallWords[lower]:
			words[i] = lower
		default:
			words[i] = capitalize(lower)
		}
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
