package storage

import "testing"

func TestImageKey(t *testing.T) {
	cases := []struct {
		projectID string
		imageID   string
		filename  string
		want      string
	}{
		{"proj-1", "img-1", "pendant.jpg", "projects/proj-1/img-1.jpg"},
		{"proj-1", "img-2", "shot.PNG", "projects/proj-1/img-2.png"},
		{"proj-1", "img-3", "noext", "projects/proj-1/img-3.jpg"},
	}
	for _, tc := range cases {
		if got := ImageKey(tc.projectID, tc.imageID, tc.filename); got != tc.want {
			t.Fatalf("ImageKey(%q, %q, %q) = %q, want %q", tc.projectID, tc.imageID, tc.filename, got, tc.want)
		}
	}
}
