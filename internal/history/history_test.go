package history

import (
	"testing"

	"cftunnel/internal/appconfig"
	"cftunnel/internal/model"
)

func TestTouchAndLastStarted(t *testing.T) {
	t.Setenv(appconfig.EnvHome, t.TempDir())

	if err := Touch("office"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := LastStarted()
	if err != nil {
		t.Fatalf("last started: %v", err)
	}
	if got["office"] == 0 {
		t.Fatalf("expected a timestamp for office, got %v", got)
	}
}

func TestLastStartedEmptyWhenMissing(t *testing.T) {
	t.Setenv(appconfig.EnvHome, t.TempDir())
	got, err := LastStarted()
	if err != nil {
		t.Fatalf("last started: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestSortRecent(t *testing.T) {
	profiles := []model.Profile{
		{Name: "alpha"},
		{Name: "bravo"},
		{Name: "charlie"},
	}
	last := map[string]int64{
		"charlie": 300,
		"alpha":   100,
	}

	sorted := SortRecent(profiles, last)
	want := []string{"charlie", "alpha", "bravo"}
	for i, name := range want {
		if sorted[i].Name != name {
			t.Fatalf("index %d: got %s want %s (full: %+v)", i, sorted[i].Name, name, sorted)
		}
	}

	// Input slice must not be reordered.
	if profiles[0].Name != "alpha" {
		t.Fatalf("input mutated: %+v", profiles)
	}
}

func TestSortRecentTiesByName(t *testing.T) {
	profiles := []model.Profile{{Name: "zulu"}, {Name: "alpha"}}
	sorted := SortRecent(profiles, nil)
	if sorted[0].Name != "alpha" || sorted[1].Name != "zulu" {
		t.Fatalf("ties must sort by name: %+v", sorted)
	}
}
