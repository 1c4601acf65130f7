package search

import "testing"

func TestAddTermAndSearch(t *testing.T) {
	ix := New()
	ix.AddTerm(Track, 1, "Bohemian Rhapsody")
	ix.AddTerm(Track, 2, "Bohemian Like You")
	ix.AddTerm(Artist, 10, "Queen")

	results := ix.Search("bohemian", 10)
	tracks := results[Track]
	if len(tracks) != 2 {
		t.Fatalf("expected 2 track matches, got %d (%v)", len(tracks), tracks)
	}

	artists := results[Artist]
	if len(artists) != 0 {
		t.Fatalf("expected no artist matches for 'bohemian', got %v", artists)
	}

	results = ix.Search("queen", 10)
	if got := results[Artist]; len(got) != 1 || got[0] != 10 {
		t.Fatalf("expected artist 10, got %v", got)
	}
}

func TestRemoveTerm(t *testing.T) {
	ix := New()
	ix.AddTerm(Track, 1, "Yesterday")
	ix.RemoveTerm(Track, 1)

	results := ix.Search("yesterday", 10)
	if len(results[Track]) != 0 {
		t.Fatalf("expected no matches after removal, got %v", results[Track])
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	ix := New()
	for i := int64(0); i < 5; i++ {
		ix.AddTerm(Track, i, "common word")
	}

	results := ix.Search("common", 2)
	if len(results[Track]) != 2 {
		t.Fatalf("expected limit of 2 results, got %d", len(results[Track]))
	}
}

func TestLatinizeStripsDiacritics(t *testing.T) {
	got := Latinize("Café Müller")
	want := "Cafe Muller"
	if got != want {
		t.Errorf("Latinize(%q) = %q, want %q", "Café Müller", got, want)
	}
}

func TestLatinizedSearchMatchesAccentedTerm(t *testing.T) {
	ix := New()
	ix.AddTerm(Track, 1, "Café del Mar")

	results := ix.Search("cafe", 10)
	if got := results[Track]; len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected accent-insensitive match, got %v", got)
	}
}
