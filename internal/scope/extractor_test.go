package scope

import (
	"testing"

	"github.com/openlgu/badyet/internal/jurisdiction"
)

func TestExtractNamedBarangay(t *testing.T) {
	e := NewRegexExtractor()

	tests := []struct {
		question string
		want     []Cue
	}{
		{
			"What is the budget of Barangay San Isidro?",
			[]Cue{{jurisdiction.TypeBarangay, "San Isidro"}},
		},
		{
			"How much did brgy. Mabini spend on roads in 2024?",
			[]Cue{{jurisdiction.TypeBarangay, "Mabini"}},
		},
		{
			"Compare barangay San Isidro and barangay Mabini",
			[]Cue{{jurisdiction.TypeBarangay, "San Isidro"}, {jurisdiction.TypeBarangay, "Mabini"}},
		},
		{
			"Magkano ang badyet sa barangay Bagong Silang ngayong taon?",
			[]Cue{{jurisdiction.TypeBarangay, "Bagong Silang"}},
		},
	}

	for _, tt := range tests {
		got := e.Extract(tt.question)
		if len(got.RequestedScopes) != len(tt.want) {
			t.Errorf("%q: expected %d cues, got %+v", tt.question, len(tt.want), got.RequestedScopes)
			continue
		}
		for i, w := range tt.want {
			if got.RequestedScopes[i] != w {
				t.Errorf("%q: cue %d = %+v, want %+v", tt.question, i, got.RequestedScopes[i], w)
			}
		}
	}
}

func TestExtractCityForms(t *testing.T) {
	e := NewRegexExtractor()

	got := e.Extract("What are the projects in Quezon City for 2025?")
	if len(got.RequestedScopes) != 1 {
		t.Fatalf("expected 1 cue, got %+v", got.RequestedScopes)
	}
	if got.RequestedScopes[0].Type != jurisdiction.TypeCity || got.RequestedScopes[0].Name != "Quezon" {
		t.Errorf("got %+v", got.RequestedScopes[0])
	}

	got = e.Extract("ano ang badyet ng lungsod ng Maynila?")
	if len(got.RequestedScopes) != 1 || got.RequestedScopes[0].Type != jurisdiction.TypeCity {
		t.Fatalf("expected city cue, got %+v", got.RequestedScopes)
	}
	if got.RequestedScopes[0].Name != "Maynila" {
		t.Errorf("expected Maynila, got %q", got.RequestedScopes[0].Name)
	}
}

func TestExtractMunicipality(t *testing.T) {
	e := NewRegexExtractor()
	got := e.Extract("health budget of the municipality of Pililla this year")
	if len(got.RequestedScopes) != 1 {
		t.Fatalf("expected 1 cue, got %+v", got.RequestedScopes)
	}
	want := Cue{jurisdiction.TypeMunicipality, "Pililla"}
	if got.RequestedScopes[0] != want {
		t.Errorf("got %+v, want %+v", got.RequestedScopes[0], want)
	}
}

func TestExtractNoiseWordsSuppressed(t *testing.T) {
	e := NewRegexExtractor()

	for _, q := range []string{
		"What is the budget of our barangay this year?",
		"How is this city spending its funds?",
		"Every barangay should publish its AIP",
		"How much did our barangay budget for daycare?",
		"Where is the barangay budget for 2024 published?",
	} {
		got := e.Extract(q)
		if len(got.RequestedScopes) != 0 {
			t.Errorf("%q: expected no named cues, got %+v", q, got.RequestedScopes)
		}
	}
}

func TestExtractOwnJurisdictionCue(t *testing.T) {
	e := NewRegexExtractor()

	for _, q := range []string{
		"What is the budget of our barangay this year?",
		"Magkano ang pondo sa aming barangay?",
		"ilang proyekto sa barangay namin?",
	} {
		got := e.Extract(q)
		if !got.HasOwnJurisdictionCue {
			t.Errorf("%q: expected own-jurisdiction cue", q)
		}
	}

	got := e.Extract("What is the budget of Barangay San Isidro?")
	if got.HasOwnJurisdictionCue {
		t.Error("named mention should not set the own-jurisdiction cue")
	}
}

func TestExtractDedupesCaseInsensitively(t *testing.T) {
	e := NewRegexExtractor()
	got := e.Extract("Barangay San Isidro vs barangay SAN ISIDRO")
	if len(got.RequestedScopes) != 1 {
		t.Fatalf("expected 1 deduplicated cue, got %+v", got.RequestedScopes)
	}
	// First occurrence's casing wins.
	if got.RequestedScopes[0].Name != "San Isidro" {
		t.Errorf("expected first-occurrence casing, got %q", got.RequestedScopes[0].Name)
	}
}

func TestExtractEmptyResult(t *testing.T) {
	e := NewRegexExtractor()
	got := e.Extract("How does the AIP process work?")
	if got.HasOwnJurisdictionCue || len(got.RequestedScopes) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}
