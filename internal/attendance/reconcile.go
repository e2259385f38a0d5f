package attendance

import (
	"strconv"
	"strings"
)

// Unmarked returns the roster students whose university roll number is not in
// marked, in roster order. Neither input is modified.
func Unmarked(roster []Student, marked []string) []Student {
	seen := make(map[string]struct{}, len(marked))
	for _, roll := range marked {
		seen[roll] = struct{}{}
	}
	out := make([]Student, 0, len(roster))
	for _, s := range roster {
		if _, ok := seen[s.UniversityRollNo]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Filter keeps the students whose name or class roll id contains term,
// ignoring case. An empty term keeps everyone.
func Filter(students []Student, term string) []Student {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return append([]Student(nil), students...)
	}
	var out []Student
	for _, s := range students {
		if strings.Contains(strings.ToLower(s.Name), term) ||
			strings.Contains(strconv.Itoa(s.ClassRollID), term) {
			out = append(out, s)
		}
	}
	return out
}
