package voiceagent

import "testing"

func TestBestRecordingURL_Preference(t *testing.T) {
	c := CallRecord{ScrubbedRecordingURL: "s", RecordingMultiChannelURL: "m"}
	if got := c.BestRecordingURL(); got != "m" {
		t.Fatalf("expected multi-channel before scrubbed, got %q", got)
	}
	c.RecordingURL = "r"
	if got := c.BestRecordingURL(); got != "r" {
		t.Fatalf("expected plain recording first, got %q", got)
	}
	if (CallRecord{}).BestRecordingURL() != "" {
		t.Fatalf("expected empty url")
	}
}

func TestTranscriptText_BlankIsEmpty(t *testing.T) {
	blank := "  \n\t "
	if (CallRecord{Transcript: &blank}).TranscriptText() != "" {
		t.Fatalf("expected whitespace transcript to read as empty")
	}
	if (CallRecord{}).TranscriptText() != "" {
		t.Fatalf("expected nil transcript to read as empty")
	}
}

func TestCountryCode(t *testing.T) {
	cases := map[string]string{
		"+1 415 555 0100":  "US",
		"+44 20 7946 0958": "GB",
		"+919876543210":    "IN",
		"+7 495 123 4567":  "RU",
		"0207946":          "US",
	}
	for in, want := range cases {
		if got := CountryCode(in); got != want {
			t.Fatalf("CountryCode(%q) = %q, want %q", in, got, want)
		}
	}
	if DialNumber("+1 415 555 0100") != "+14155550100" {
		t.Fatalf("unexpected dial number")
	}
}
