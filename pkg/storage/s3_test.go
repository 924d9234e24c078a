package storage

import "testing"

func TestTranscriptKey(t *testing.T) {
	cases := []struct {
		name      string
		courseID  string
		lectureID string
		want      string
	}{
		{"normal", "course-phys", "11111111-2222-3333-4444-555555555555", "transcripts/course-phys/11111111-2222-3333-4444-555555555555.txt"},
		{"empty course", "", "abc", "transcripts/uncategorized/abc.txt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TranscriptKey(tc.courseID, tc.lectureID); got != tc.want {
				t.Fatalf("TranscriptKey(%q, %q) = %q, want %q", tc.courseID, tc.lectureID, got, tc.want)
			}
		})
	}
}
