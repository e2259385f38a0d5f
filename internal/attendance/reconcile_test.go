package attendance

import (
	"fmt"
	"math/rand"
	"testing"
)

func students(rolls ...string) []Student {
	out := make([]Student, len(rolls))
	for i, r := range rolls {
		out[i] = Student{Name: "Student " + r, UniversityRollNo: r, ClassRollID: i + 1}
	}
	return out
}

func rollsOf(ss []Student) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.UniversityRollNo
	}
	return out
}

func sameRolls(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestUnmarked(t *testing.T) {
	tests := []struct {
		name   string
		roster []Student
		marked []string
		want   []string
	}{
		{name: "one marked", roster: students("U1", "U2", "U3"), marked: []string{"U2"}, want: []string{"U1", "U3"}},
		{name: "none marked", roster: students("U1", "U2"), marked: nil, want: []string{"U1", "U2"}},
		{name: "all marked", roster: students("U1", "U2"), marked: []string{"U2", "U1"}, want: []string{}},
		{name: "unknown rolls ignored", roster: students("U1"), marked: []string{"X9", "U1", "X9"}, want: []string{}},
		{name: "empty roster", roster: nil, marked: []string{"U1"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Unmarked(tt.roster, tt.marked)
			if got == nil {
				t.Fatal("Unmarked returned nil")
			}
			if !sameRolls(rollsOf(got), tt.want) {
				t.Errorf("got %v, want %v", rollsOf(got), tt.want)
			}
		})
	}
}

// Unmarked must equal the roster minus marked, in roster order, for any input.
func TestUnmarked_SetDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 200; n++ {
		size := rng.Intn(20)
		rolls := make([]string, size)
		for i := range rolls {
			rolls[i] = fmt.Sprintf("U%d", i)
		}
		roster := students(rolls...)
		var marked []string
		markedSet := map[string]bool{}
		picks := rng.Intn(25)
		for i := 0; i < picks; i++ {
			r := fmt.Sprintf("U%d", rng.Intn(30))
			marked = append(marked, r)
			markedSet[r] = true
		}

		got := Unmarked(roster, marked)

		var want []string
		for _, r := range rolls {
			if !markedSet[r] {
				want = append(want, r)
			}
		}
		if !sameRolls(rollsOf(got), want) {
			t.Fatalf("roster %v marked %v: got %v, want %v", rolls, marked, rollsOf(got), want)
		}
		if again := Unmarked(roster, marked); !sameRolls(rollsOf(again), rollsOf(got)) {
			t.Fatalf("second call differs: %v vs %v", rollsOf(again), rollsOf(got))
		}
		if len(roster) != size {
			t.Fatal("roster modified")
		}
	}
}

func TestFilter(t *testing.T) {
	roster := []Student{
		{Name: "Asha Rao", UniversityRollNo: "U1", ClassRollID: 1},
		{Name: "Bela Sen", UniversityRollNo: "U2", ClassRollID: 12},
		{Name: "Chandra Das", UniversityRollNo: "U3", ClassRollID: 21},
	}
	tests := []struct {
		term string
		want []string
	}{
		{term: "", want: []string{"U1", "U2", "U3"}},
		{term: "  ", want: []string{"U1", "U2", "U3"}},
		{term: "asha", want: []string{"U1"}},
		{term: "  SEN ", want: []string{"U2"}},
		{term: "1", want: []string{"U1", "U2", "U3"}},
		{term: "12", want: []string{"U2"}},
		{term: "da", want: []string{"U3"}},
		{term: "zz", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got := Filter(roster, tt.term)
			if !sameRolls(rollsOf(got), tt.want) {
				t.Errorf("Filter(%q) = %v, want %v", tt.term, rollsOf(got), tt.want)
			}
		})
	}
}

func TestFilter_EmptyTermCopies(t *testing.T) {
	roster := students("U1", "U2")

	got := Filter(roster, "")
	got[0].Name = "changed"

	if roster[0].Name == "changed" {
		t.Error("Filter returned the input slice")
	}
}
