package utils

import (
	"strings"
	"testing"
)

func TestParseMagnet(t *testing.T) {
	raw := "magnet:?xt=urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01&dn=www.1TamilBlasters.fi+-+Kayamai+%282023%29+S01+EP01&xl=734003200"

	m := ParseMagnet(raw)
	if m == nil {
		t.Fatal("Expected magnet to parse")
	}
	if m.InfoHash != "abcdef0123456789abcdef0123456789abcdef01" {
		t.Errorf("Hash should be lowercased, got '%s'", m.InfoHash)
	}
	if m.DisplayName != "www.1TamilBlasters.fi - Kayamai (2023) S01 EP01" {
		t.Errorf("Display name should be decoded, got '%s'", m.DisplayName)
	}
	if m.Raw != raw {
		t.Error("Raw URI should be preserved")
	}
}

func TestParseMagnetBase32Hash(t *testing.T) {
	m := ParseMagnet("magnet:?xt=urn:btih:MFRGGZDFMZTWQ2LKNNWG23TPOBYXE43U&dn=Show+S01E01")
	if m == nil {
		t.Fatal("Base32 hash should be accepted")
	}
	if m.InfoHash != "mfrggzdfmztwq2lknnwg23tpobyxe43u" {
		t.Errorf("Unexpected hash: '%s'", m.InfoHash)
	}
}

func TestParseMagnetRejectsGarbage(t *testing.T) {
	cases := []string{
		"https://example.com/not-a-magnet",
		"magnet:?dn=no-hash-at-all",
		"magnet:?xt=urn:btih:tooshort",
		"magnet:?xt=urn:btih:zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", // not hex, not base32 length
		"",
	}
	for _, raw := range cases {
		if m := ParseMagnet(raw); m != nil {
			t.Errorf("Expected %q to be rejected, got %+v", raw, m)
		}
	}
}

func TestAppendTrackers(t *testing.T) {
	magnet := "magnet:?xt=urn:btih:abcdef0123456789abcdef0123456789abcdef01&dn=x"

	out := AppendTrackers(magnet, []string{"udp://tracker.example:6969/announce", "", "http://t2.example/announce"})
	if !strings.HasPrefix(out, magnet) {
		t.Error("Original URI should be preserved as prefix")
	}
	if strings.Count(out, "&tr=") != 2 {
		t.Errorf("Expected 2 tracker params, got %d", strings.Count(out, "&tr="))
	}
	if !strings.Contains(out, "udp%3A%2F%2Ftracker.example%3A6969%2Fannounce") {
		t.Errorf("Tracker URL should be escaped, got %s", out)
	}

	if out := AppendTrackers(magnet, nil); out != magnet {
		t.Error("No trackers should leave the URI unchanged")
	}
}
