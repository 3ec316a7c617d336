package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

// miniCoeffs is a minimal but structurally valid coefficient file: two
// degree-1 epochs plus a secular-variation column.
const miniCoeffs = `# test table
c/s deg ord
g/h n m 2015.0 2020.0 2020-25
g 1 0 -29441.5 -29404.8 5.7
g 1 1 -1501.8 -1450.9 7.4
h 1 1 4795.3 4652.5 -25.9
`

func TestParseCoefficientsMini(t *testing.T) {
	table, err := ParseCoefficients(strings.NewReader(miniCoeffs), "test", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := table.FirstEpoch(), 2015.0; got != want {
		t.Errorf("FirstEpoch = %v, want %v", got, want)
	}
	if got, want := table.LastEpoch(), 2020.0; got != want {
		t.Errorf("LastEpoch = %v, want %v", got, want)
	}
	if got, want := table.MaxDegree(), 1; got != want {
		t.Errorf("MaxDegree = %d, want %d", got, want)
	}
	set, _ := table.Set(2020.0)
	if got, want := set.GH[2], 4652.5; got != want {
		t.Errorf("h(1,1) = %v, want %v", got, want)
	}
}

func TestParseCoefficientsRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"no header", "g 1 0 1 2 3\n"},
		{"bad value", "g/h n m 2015.0 2020.0 2020-25\ng 1 0 xyz 2 3\n"},
		{"short row", "g/h n m 2015.0 2020.0 2020-25\ng 1 0 1\n"},
		{"bad length", "g/h n m 2015.0 2020.0 2020-25\ng 1 0 1 2 3\ng 1 1 1 2 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCoefficients(strings.NewReader(tt.body), "test", discardLogger()); err == nil {
				t.Error("parse succeeded, want error")
			}
		})
	}
}

func TestRefresherRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(miniCoeffs))
	}))
	defer srv.Close()

	dir := t.TempDir()
	store := NewStore()
	store.Set(Default())
	ref := NewRefresher(NewFetcher(srv.URL), NewCache(dir, 5), store, discardLogger())

	table, err := ref.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if table.Source() != srv.URL {
		t.Errorf("Source = %q, want %q", table.Source(), srv.URL)
	}
	if store.Get() != table {
		t.Error("store not swapped to refreshed table")
	}

	// The raw file must be cached for the next restart.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("cache dir has %d files, want 1", len(entries))
	}
	if name := entries[0].Name(); !strings.HasPrefix(name, "igrf_2020.0_") {
		t.Errorf("cache file %q not tagged with the table's final epoch", name)
	}
}

func TestRefresherKeepsTableOnBadFetch(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusInternalServerError)
			},
		},
		{
			name: "invalid body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("this is not a coefficient file"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			store := NewStore()
			current := Default()
			store.Set(current)
			ref := NewRefresher(NewFetcher(srv.URL), NewCache(t.TempDir(), 5), store, discardLogger())

			if _, err := ref.Refresh(context.Background()); err == nil {
				t.Fatal("Refresh succeeded, want error")
			}
			if store.Get() != current {
				t.Error("store changed after failed refresh")
			}
		})
	}
}
