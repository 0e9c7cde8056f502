package views

import (
	"bytes"
	"strings"
	"testing"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/types"
)

func transcript() *types.Transcript {
	return &types.Transcript{
		Text:     "  x y\n z  ",
		Duration: 75,
		Segments: []types.Segment{
			{Start: 0, End: 2, Speaker: "A", Text: " x "},
			{Start: 2, End: 65, Speaker: "B", Text: "y"},
			{Start: 65, End: 75, Speaker: "A", Text: "z"},
		},
	}
}

func TestGroupedMergesNonContiguousRuns(t *testing.T) {
	groups := Grouped(transcript())
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0] != (GroupEntry{Speaker: "A", Text: "x z"}) {
		t.Errorf("unexpected first group %+v", groups[0])
	}
	if groups[1] != (GroupEntry{Speaker: "B", Text: "y"}) {
		t.Errorf("unexpected second group %+v", groups[1])
	}
}

func TestTimeline(t *testing.T) {
	entries := Timeline(transcript())
	if len(entries) != 3 {
		t.Fatalf("expected one entry per segment, got %d", len(entries))
	}
	want := []TimelineEntry{
		{Timestamp: "00:00", Start: 0, Speaker: "A", Text: "x"},
		{Timestamp: "00:02", Start: 2, Speaker: "B", Text: "y"},
		{Timestamp: "01:05", Start: 65, Speaker: "A", Text: "z"},
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestRawPreservesWhitespace(t *testing.T) {
	if got := Raw(transcript()); got != "  x y\n z  " {
		t.Fatalf("Raw() = %q", got)
	}
}

func TestProjectIsRepeatable(t *testing.T) {
	tr := transcript()
	for _, mode := range Modes() {
		first, err := Project(tr, mode)
		if err != nil {
			t.Fatalf("Project(%s) error: %v", mode, err)
		}
		second, _ := Project(tr, mode)
		var a, b bytes.Buffer
		Write(&a, first)
		Write(&b, second)
		if a.String() != b.String() {
			t.Errorf("Project(%s) not repeatable", mode)
		}
	}
}

func TestProjectErrors(t *testing.T) {
	if _, err := Project(nil, ModeRaw); apperr.KindOf(err) != apperr.KindState {
		t.Errorf("expected state error without transcript, got %v", err)
	}
	if _, err := Project(transcript(), Mode("cards")); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not found for unknown mode, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"formatted": ModeFormatted,
		"grouped":   ModeFormatted,
		"Timeline":  ModeTimeline,
		"raw":       ModeRaw,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("table"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(transcript())
	if s.Duration != "1:15" || s.Speakers != 2 || s.Words != 3 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestWriteFormatted(t *testing.T) {
	r, _ := Project(transcript(), ModeFormatted)
	var buf bytes.Buffer
	if err := Write(&buf, r); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "A\n  x z\n\nB\n  y\n") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
