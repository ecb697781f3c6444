package fsk

import "testing"

func TestEncodeSDMFChecksum(t *testing.T) {
	ds := NewSDMF("0101120015551234567")
	msg := Encode(ds)
	if msg[0] != 0x04 {
		t.Fatalf("expected SDMF type byte 0x04, got 0x%02x", msg[0])
	}
	var sum byte
	for _, b := range msg {
		sum += b
	}
	if sum != 0 {
		t.Fatalf("expected message bytes to sum to 0 mod 256, got %d", sum)
	}
}

func TestEncodeMDMFChecksum(t *testing.T) {
	ds := NewMDMF(
		Field{Type: MDMFDateTime, Value: "01011200"},
		Field{Type: MDMFPhoneNum, Value: "5551234567"},
		Field{Type: MDMFPhoneName, Value: "JOHN DOE"},
	)
	msg := Encode(ds)
	if msg[0] != 0x80 {
		t.Fatalf("expected MDMF type byte 0x80, got 0x%02x", msg[0])
	}
	var sum byte
	for _, b := range msg {
		sum += b
	}
	if sum != 0 {
		t.Fatalf("expected message bytes to sum to 0 mod 256, got %d", sum)
	}
}

func TestParseMessageRoundTrip(t *testing.T) {
	ds := NewMDMF(
		Field{Type: MDMFDateTime, Value: "01011200"},
		Field{Type: MDMFPhoneNum, Value: "5551234567"},
	)
	msg := Encode(ds)

	parsed, err := ParseMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.IsMDMF {
		t.Fatal("expected MDMF")
	}
	if len(parsed.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(parsed.Fields))
	}
	if parsed.Fields[0].Type != MDMFDateTime || parsed.Fields[0].Value != "01011200" {
		t.Fatalf("got field 0: %+v", parsed.Fields[0])
	}
	if parsed.Fields[1].Type != MDMFPhoneNum || parsed.Fields[1].Value != "5551234567" {
		t.Fatalf("got field 1: %+v", parsed.Fields[1])
	}
}

func TestParseMessageChecksumMismatch(t *testing.T) {
	ds := NewSDMF("5551234567")
	msg := Encode(ds)
	msg[len(msg)-1] ^= 0xff // corrupt checksum
	if _, err := ParseMessage(msg); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestModulateDemodulateRoundTrip(t *testing.T) {
	rate := 8000
	ds := NewMDMF(
		Field{Type: MDMFDateTime, Value: "01011200"},
		Field{Type: MDMFPhoneNum, Value: "5551234567"},
	)

	mod := NewModulator(rate, 60, 6, 0, 0)
	pcm := mod.Modulate(ds)

	demod := NewDemodulator(rate)
	demod.Feed(pcm)

	got, err := demod.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsMDMF || len(got.Fields) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Fields[1].Value != "5551234567" {
		t.Fatalf("got phone num %q", got.Fields[1].Value)
	}
}

func TestMDMFTypeString(t *testing.T) {
	cases := map[MDMFType]string{
		MDMFDDN:       "DDN",
		MDMFPhoneNum:  "PHONE_NUM",
		MDMFNoNum:     "NO_NUM",
		MDMFPhoneName: "PHONE_NAME",
		MDMFNoName:    "NO_NAME",
		MDMFDateTime:  "DATETIME",
		MDMFInvalid:   "INVALID",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("%v: got %q want %q", k, got, want)
		}
	}
}
