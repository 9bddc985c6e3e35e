package metastore

import (
	"testing"

	"github.com/gbif/mvt-tile-server/pkg/metawatch/kafka"
)

func TestStatic_TableFor(t *testing.T) {
	s := NewStatic(map[string]string{"occurrence": "occurrence_2026_01"})
	got, err := s.TableFor("occurrence")
	if err != nil {
		t.Fatalf("TableFor: %v", err)
	}
	if got != "occurrence_2026_01" {
		t.Fatalf("TableFor = %q, want occurrence_2026_01", got)
	}
	if _, err := s.TableFor("missing"); err == nil {
		t.Fatal("expected error for unconfigured logical name")
	}
}

func TestStatic_IsolatedFromInputMap(t *testing.T) {
	src := map[string]string{"occurrence": "gen1"}
	s := NewStatic(src)
	src["occurrence"] = "gen2"
	got, _ := s.TableFor("occurrence")
	if got != "gen1" {
		t.Fatalf("Static.TableFor leaked a mutation of the caller's map: got %q", got)
	}
}

func TestWatched_SeedThenApply(t *testing.T) {
	w := NewWatched(map[string]string{"occurrence": "gen1"}, kafka.Config{}, kafka.Options{})

	got, err := w.TableFor("occurrence")
	if err != nil {
		t.Fatalf("TableFor: %v", err)
	}
	if got != "gen1" {
		t.Fatalf("TableFor = %q, want gen1", got)
	}

	if err := w.ApplyTable("occurrence", "gen2", 1); err != nil {
		t.Fatalf("ApplyTable: %v", err)
	}
	got, err = w.TableFor("occurrence")
	if err != nil {
		t.Fatalf("TableFor after apply: %v", err)
	}
	if got != "gen2" {
		t.Fatalf("TableFor after apply = %q, want gen2", got)
	}

	if ready, _ := w.Readiness(); ready {
		t.Fatal("expected not ready before Start/rebalance")
	}
}

func TestWatched_ApplyAddsNewLogicalName(t *testing.T) {
	w := NewWatched(map[string]string{}, kafka.Config{}, kafka.Options{})
	if err := w.ApplyTable("clustered", "clustered_gen1", 1); err != nil {
		t.Fatalf("ApplyTable: %v", err)
	}
	got, err := w.TableFor("clustered")
	if err != nil {
		t.Fatalf("TableFor: %v", err)
	}
	if got != "clustered_gen1" {
		t.Fatalf("TableFor = %q, want clustered_gen1", got)
	}
}
