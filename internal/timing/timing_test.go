package timing

import (
	"math"
	"testing"

	"github.com/pagevoice/pagevoice/internal/protocol"
)

func TestReconstructDegenerateInput(t *testing.T) {
	if _, ok := Reconstruct(nil, 3.0); ok {
		t.Fatal("expected no timing for empty segment list")
	}
	segs := []protocol.Segment{{Speaker: "Narrator", Text: "Hello there."}}
	if _, ok := Reconstruct(segs, 0); ok {
		t.Fatal("expected no timing for zero duration")
	}
	empty := []protocol.Segment{{Speaker: "Narrator", Text: ""}}
	if _, ok := Reconstruct(empty, 3.0); ok {
		t.Fatal("expected no timing for empty segment text")
	}
}

func TestReconstructRescalesToMeasuredDuration(t *testing.T) {
	segs := []protocol.Segment{
		{Speaker: "Narrator", Text: "The first segment has some plain text in it"},
		{Speaker: "Narrator", Text: "And the second one continues the page"},
	}
	enhanced, ok := Reconstruct(segs, 10.0)
	if !ok {
		t.Fatal("expected timing")
	}
	if enhanced[0].StartTime != 0 {
		t.Fatalf("expected first segment to start at 0, got %f", enhanced[0].StartTime)
	}
	last := enhanced[len(enhanced)-1]
	if math.Abs(last.EndTime-10.0) > 1e-9 {
		t.Fatalf("expected last segment to end at 10.0, got %f", last.EndTime)
	}
	for i := 1; i < len(enhanced); i++ {
		if math.Abs(enhanced[i].StartTime-enhanced[i-1].EndTime) > 1e-9 {
			t.Fatalf("segments not contiguous at %d: %f vs %f", i, enhanced[i].StartTime, enhanced[i-1].EndTime)
		}
	}
}

func TestPunctuationSlowsSegment(t *testing.T) {
	segs := []protocol.Segment{
		{Speaker: "Narrator", Text: "aaaaaaaaaaaaaaaaaaaa"},
		{Speaker: "Narrator", Text: "a,a,a,a,a,a,a,a,a,a,"},
	}
	enhanced, ok := Reconstruct(segs, 10.0)
	if !ok {
		t.Fatal("expected timing")
	}
	plain := enhanced[0].EndTime - enhanced[0].StartTime
	punctuated := enhanced[1].EndTime - enhanced[1].StartTime
	if punctuated <= plain {
		t.Fatalf("expected punctuation-heavy segment to take longer: %f vs %f", punctuated, plain)
	}
}

func TestWordTimings(t *testing.T) {
	segs := []protocol.Segment{{Speaker: "Narrator", Text: "Hello world. This is a test."}}
	enhanced, ok := Reconstruct(segs, 3.0)
	if !ok {
		t.Fatal("expected timing")
	}
	timings := enhanced[0].WordTimings
	if len(timings) != 6 {
		t.Fatalf("expected 6 word timings, got %d", len(timings))
	}
	if math.Abs(timings[0].Time-0.05) > 1e-9 {
		t.Fatalf("expected first word at 0.05, got %f", timings[0].Time)
	}
	for i := 1; i < len(timings); i++ {
		if timings[i].Time <= timings[i-1].Time {
			t.Fatalf("word timings not increasing at %d", i)
		}
	}
	if timings[len(timings)-1].Time >= 3.0 {
		t.Fatalf("expected last word to start before audio ends, got %f", timings[len(timings)-1].Time)
	}

	// "world." holds the floor 1.3x longer than its character share.
	wordChars := float64(len("Hello") + len("world.") + len("This") + len("is") + len("a") + len("test."))
	want := 3.0 * float64(len("world.")) / wordChars * 1.3
	got := timings[2].Time - timings[1].Time
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected sentence-end gap %f, got %f", want, got)
	}
}

func TestWordWeightsCountRunes(t *testing.T) {
	// "ééééé" is five runes but ten bytes; weighted by runes it gets 5/8 of
	// the window and must not trip the long-word factor.
	segs := []protocol.Segment{{Speaker: "Narrator", Text: "ééééé abc"}}
	enhanced, ok := Reconstruct(segs, 2.0)
	if !ok {
		t.Fatal("expected timing")
	}
	timings := enhanced[0].WordTimings
	want := 2.0 * 5.0 / 8.0
	got := timings[1].Time - timings[0].Time
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected rune-weighted gap %f, got %f", want, got)
	}
}

func TestComplexWordSlowsDown(t *testing.T) {
	segs := []protocol.Segment{{Speaker: "Narrator", Text: "extraordinary cat extraordinary"}}
	enhanced, ok := Reconstruct(segs, 4.0)
	if !ok {
		t.Fatal("expected timing")
	}
	timings := enhanced[0].WordTimings
	wordChars := float64(len("extraordinary")*2 + len("cat"))
	want := 4.0 * float64(len("extraordinary")) / wordChars * 1.2
	got := timings[1].Time - timings[0].Time
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected long-word gap %f, got %f", want, got)
	}
}
