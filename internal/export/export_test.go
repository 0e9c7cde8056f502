package export

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/types"
)

func sampleTranscript() *types.Transcript {
	return &types.Transcript{
		Text:     "Hello there. He said \"hi\" to me. Sounds good.",
		Duration: 125.4,
		Language: "en",
		Segments: []types.Segment{
			{Start: 0, End: 4.2, Speaker: "Speaker 1", Text: " Hello there. "},
			{Start: 4.2, End: 61.5, Speaker: "Speaker 2", Text: `He said "hi" to me.`},
			{Start: 61.5, End: 125.4, Speaker: "Speaker 1", Text: "Sounds good."},
		},
	}
}

func sampleMeta() Meta {
	return Meta{
		SourceName:  "meeting.mp3",
		GeneratedAt: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00"},
		{5.9, "00:05"},
		{59.999, "00:59"},
		{60, "01:00"},
		{125, "02:05"},
		{125.4, "02:05"},
		{3725, "62:05"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSRTTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{125.4, "00:02:05,400"},
		{3661.5, "01:01:01,500"},
		{0.25, "00:00:00,250"},
	}
	for _, tt := range tests {
		if got := FormatSRTTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatSRTTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[float64]string{
		0:     "0:00",
		9:     "0:09",
		125.4: "2:05",
		3600:  "60:00",
	}
	for in, want := range tests {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"txt", "JSON", ".csv", " srt ", "pdf"} {
		if _, err := ParseFormat(in); err != nil {
			t.Errorf("ParseFormat(%q) returned error: %v", in, err)
		}
	}
	_, err := ParseFormat("docx")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found error for docx, got %v", err)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("meeting.mp3", FormatSRT); got != "meeting_transcript.srt" {
		t.Errorf("unexpected filename %q", got)
	}
	if got := Filename("", FormatJSON); got != "transcript_transcript.json" {
		t.Errorf("unexpected fallback filename %q", got)
	}
	if got := Filename("team.sync.m4a", FormatPDF); got != "team.sync_transcript.pdf" {
		t.Errorf("unexpected filename %q", got)
	}
}

func TestEncodeText(t *testing.T) {
	out := string(EncodeText(sampleTranscript(), sampleMeta()))

	for _, want := range []string{
		"AUDIO TRANSCRIPTION WITH SPEAKER SEPARATION\n",
		"Source File: meeting.mp3\n",
		"Transcribed: 2025-03-14 09:26:53\n",
		"Model Used: Whisper AI + Speaker Diarization\n",
		"Language: en\n",
		"[Speaker 1]:\nHello there. Sounds good.\n\n",
		"[Speaker 2]:\nHe said \"hi\" to me.\n\n",
		"[00:00 - 00:04] Speaker 1: Hello there.\n",
		"[01:01 - 02:05] Speaker 1: Sounds good.\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text export missing %q\n%s", want, out)
		}
	}

	// speaker-merged section lists each speaker once
	if strings.Count(out, "[Speaker 1]:") != 1 {
		t.Errorf("expected a single Speaker 1 group")
	}
}

func TestEncodeTextDefaults(t *testing.T) {
	tr := sampleTranscript()
	tr.Language = ""
	out := string(EncodeText(tr, Meta{GeneratedAt: time.Now()}))
	if !strings.Contains(out, "Source File: demo-audio.mp3\n") {
		t.Errorf("expected default source name")
	}
	if !strings.Contains(out, "Language: en\n") {
		t.Errorf("expected default language")
	}
}

func TestEncodeCSV(t *testing.T) {
	out := string(EncodeCSV(sampleTranscript()))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	if lines[0] != "Start Time,End Time,Speaker,Text" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[1] != `"00:00","00:04","Speaker 1","Hello there."` {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if lines[2] != `"00:04","01:01","Speaker 2","He said ""hi"" to me."` {
		t.Errorf("unexpected quoted row %q", lines[2])
	}
}

func TestEncodeCSVQuotesSpeaker(t *testing.T) {
	tr := &types.Transcript{Segments: []types.Segment{{Speaker: `The "Host"`, Text: "ok"}}}
	out := string(EncodeCSV(tr))
	if !strings.Contains(out, `"The ""Host"""`) {
		t.Errorf("speaker quotes not escaped: %s", out)
	}
}

func TestEncodeSRT(t *testing.T) {
	out := string(EncodeSRT(sampleTranscript()))
	want := "1\n00:00:00,000 --> 00:00:04,200\n[Speaker 1] Hello there.\n\n" +
		"2\n00:00:04,200 --> 00:01:01,500\n[Speaker 2] He said \"hi\" to me.\n\n" +
		"3\n00:01:01,500 --> 00:02:05,400\n[Speaker 1] Sounds good.\n\n"
	if out != want {
		t.Errorf("unexpected srt output:\n%s\nwant:\n%s", out, want)
	}
}

func TestEncodeSRTDoesNotMergeSameSpeaker(t *testing.T) {
	tr := &types.Transcript{Segments: []types.Segment{
		{Start: 0, End: 1, Speaker: "A", Text: "one"},
		{Start: 1, End: 2, Speaker: "A", Text: "two"},
		{Start: 10, End: 12, Speaker: "A", Text: "three"},
	}}
	out := string(EncodeSRT(tr))
	for _, idx := range []string{"1\n", "\n2\n", "\n3\n"} {
		if !strings.Contains(out, idx) {
			t.Errorf("missing cue index %q in\n%s", idx, out)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	tr := sampleTranscript()
	data, err := EncodeJSON(tr, sampleMeta())
	if err != nil {
		t.Fatalf("EncodeJSON() error: %v", err)
	}
	if !bytes.Contains(data, []byte("\n  \"metadata\"")) {
		t.Errorf("expected pretty-printed output")
	}

	doc, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("DecodeJSON() error: %v", err)
	}
	if doc.Metadata.SourceFile != "meeting.mp3" {
		t.Errorf("sourceFile = %q", doc.Metadata.SourceFile)
	}
	if doc.Metadata.TranscribedAt != "2025-03-14T09:26:53.000Z" {
		t.Errorf("transcribedAt = %q", doc.Metadata.TranscribedAt)
	}
	if _, err := time.Parse(time.RFC3339, doc.Metadata.TranscribedAt); err != nil {
		t.Errorf("transcribedAt is not machine-parseable: %v", err)
	}

	back := doc.ToTranscript()
	if !reflect.DeepEqual(back.Segments, tr.Segments) {
		t.Errorf("segments changed in round trip:\n%+v\n%+v", back.Segments, tr.Segments)
	}
	if back.SpeakerCount() != doc.Metadata.SpeakerCount {
		t.Errorf("speaker count %d != metadata %d", back.SpeakerCount(), doc.Metadata.SpeakerCount)
	}
	if back.WordCount() != doc.Metadata.WordCount {
		t.Errorf("word count %d != metadata %d", back.WordCount(), doc.Metadata.WordCount)
	}
}

func TestJSONEmptySegments(t *testing.T) {
	data, err := EncodeJSON(&types.Transcript{Text: "nothing"}, sampleMeta())
	if err != nil {
		t.Fatalf("EncodeJSON() error: %v", err)
	}
	if !bytes.Contains(data, []byte(`"segments": []`)) {
		t.Errorf("expected empty segment array, got %s", data)
	}
}

type fixedMeasurer struct{ perSegment int }

func (m fixedMeasurer) SplitText(text string, width float64) []string {
	lines := make([]string, m.perSegment)
	for i := range lines {
		lines[i] = text
	}
	return lines
}

func TestLayoutFirstPage(t *testing.T) {
	ops := Layout(sampleTranscript(), sampleMeta(), fixedMeasurer{perSegment: 1}, PageHeight)

	if ops[0].Text != "Audio Transcription" || ops[0].Style != StyleTitle {
		t.Fatalf("unexpected title op %+v", ops[0])
	}
	if ops[3].Text != "Duration: 2:05" {
		t.Errorf("unexpected duration line %q", ops[3].Text)
	}
	if ops[4].Text != "Speakers: 2" {
		t.Errorf("unexpected speakers line %q", ops[4].Text)
	}
	heading := ops[5]
	if heading.Style != StyleHeading || heading.Y != BodyStart || heading.Text != "[00:00] Speaker 1:" {
		t.Errorf("unexpected first heading %+v", heading)
	}
	if ops[6].Y != BodyStart+LineHeight {
		t.Errorf("body line should follow heading, got y=%v", ops[6].Y)
	}
	if PageCount(ops) != 1 {
		t.Errorf("expected single page, got %d", PageCount(ops))
	}
}

func TestLayoutPageBreaks(t *testing.T) {
	segs := make([]types.Segment, 40)
	for i := range segs {
		segs[i] = types.Segment{Start: float64(i), End: float64(i + 1), Speaker: "A", Text: "words"}
	}
	tr := &types.Transcript{Segments: segs}
	ops := Layout(tr, sampleMeta(), fixedMeasurer{perSegment: 2}, PageHeight)

	limit := PageHeight - BottomReserve
	for _, op := range ops {
		if op.Y > limit+LineHeight {
			t.Fatalf("op placed past the page limit: %+v", op)
		}
	}
	if PageCount(ops) < 2 {
		t.Fatalf("expected a page break, got %d pages", PageCount(ops))
	}

	// first op on every new page starts at the top cursor
	seen := map[int]bool{1: true}
	for _, op := range ops {
		if !seen[op.Page] {
			seen[op.Page] = true
			if op.Y != PageTop {
				t.Errorf("page %d starts at y=%v, want %v", op.Page, op.Y, PageTop)
			}
		}
	}
}

func TestEncodeAllFormats(t *testing.T) {
	tr := sampleTranscript()
	before := *tr
	before.Segments = append([]types.Segment(nil), tr.Segments...)

	for _, f := range Formats() {
		art, err := Encode(f, tr, sampleMeta())
		if err != nil {
			t.Fatalf("Encode(%s) error: %v", f, err)
		}
		if len(art.Data) == 0 {
			t.Errorf("Encode(%s) produced empty output", f)
		}
		if !strings.HasSuffix(art.Filename, "."+f.Ext()) {
			t.Errorf("Encode(%s) filename %q has wrong extension", f, art.Filename)
		}
		if art.ContentType == "" {
			t.Errorf("Encode(%s) has no content type", f)
		}
	}

	if !reflect.DeepEqual(before.Segments, tr.Segments) {
		t.Errorf("encoders mutated the transcript")
	}
}

func TestEncodePDFHeader(t *testing.T) {
	art, err := Encode(FormatPDF, sampleTranscript(), sampleMeta())
	if err != nil {
		t.Fatalf("Encode(pdf) error: %v", err)
	}
	if !bytes.HasPrefix(art.Data, []byte("%PDF-")) {
		t.Errorf("output is not a PDF")
	}
}

func TestEncodeWithoutTranscript(t *testing.T) {
	_, err := Encode(FormatText, nil, sampleMeta())
	if apperr.KindOf(err) != apperr.KindState {
		t.Fatalf("expected state error, got %v", err)
	}
}
