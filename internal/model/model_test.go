package model

import "testing"

func TestValidQueueYear(t *testing.T) {
	tests := []struct {
		year string
		want bool
	}{
		{year: "all", want: true},
		{year: "2020", want: true},
		{year: "1887", want: true},
		{year: "", want: false},
		{year: "ALL", want: false},
		{year: "20x0", want: false},
		{year: "-2020", want: false},
		{year: "0", want: false},
		{year: "02020", want: false},
		{year: " 2020", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.year, func(t *testing.T) {
			if got := ValidQueueYear(tt.year); got != tt.want {
				t.Errorf("ValidQueueYear(%q) = %t, want %t", tt.year, got, tt.want)
			}
		})
	}
}

func TestValidYear(t *testing.T) {
	for year, want := range map[int]bool{2020: true, 1: true, 0: false, -5: false} {
		if got := ValidYear(year); got != want {
			t.Errorf("ValidYear(%d) = %t, want %t", year, got, want)
		}
	}
}

func TestQueueItemAllYears(t *testing.T) {
	if !(QueueItem{Year: YearAll}).AllYears() {
		t.Error("AllYears() = false for year \"all\"")
	}
	if (QueueItem{Year: "2020"}).AllYears() {
		t.Error("AllYears() = true for year \"2020\"")
	}
}
