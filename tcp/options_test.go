package tcp

import "testing"

func TestParseOptionsWindowScaleAndTimestamps(t *testing.T) {
	var b []byte
	b = AppendWindowScale(b, 7)
	b = AppendTimestamps(b, 0xAABBCCDD, 0x11223344)

	opts, err := parseOptions(b)
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if !opts.hasWndScale || opts.wndScale != 7 {
		t.Fatalf("wndScale = %v, %v; want 7, true", opts.wndScale, opts.hasWndScale)
	}
	if !opts.hasTimestamp || opts.tsval != 0xAABBCCDD || opts.tsecr != 0x11223344 {
		t.Fatalf("timestamp option mismatch: %+v", opts)
	}
}

func TestParseOptionsClampsOversizedWindowShift(t *testing.T) {
	b := AppendWindowScale(nil, 30)
	opts, err := parseOptions(b)
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts.wndScale != maxWindowShift {
		t.Fatalf("wndScale = %d, want clamped to %d", opts.wndScale, maxWindowShift)
	}
}

func TestParseOptionsSkipsNopAndStopsAtEnd(t *testing.T) {
	b := []byte{byte(OptNop), byte(OptNop), byte(OptEnd), byte(OptMaxSegmentSize), 4, 0x05, 0xB4}
	opts, err := parseOptions(b)
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts.hasMSS {
		t.Fatalf("option after OptEnd should not have been parsed")
	}
}

func TestParseOptionsRejectsTruncatedOption(t *testing.T) {
	b := []byte{byte(OptWindowScale), 3} // missing the shift octet
	if _, err := parseOptions(b); err == nil {
		t.Fatalf("expected an error for a truncated option")
	}
}

func TestParseOptionsRejectsWrongFixedLength(t *testing.T) {
	b := []byte{byte(OptWindowScale), 4, 0, 0} // WSOPT must be length 3
	if _, err := parseOptions(b); err == nil {
		t.Fatalf("expected an error for a wrong-length known option")
	}
}

func TestAppendMSSRoundTrips(t *testing.T) {
	b := AppendMSS(nil, 1460)
	opts, err := parseOptions(b)
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if !opts.hasMSS || opts.mss != 1460 {
		t.Fatalf("mss = %v, %v; want 1460, true", opts.mss, opts.hasMSS)
	}
}
