package status

import "strings"

import "testing"

func TestErrorfTruncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	err := Errorf(Fail, "%s", long)
	if len(err.Message) != lastErrorCap {
		t.Fatalf("expected message truncated to %d bytes, got %d", lastErrorCap, len(err.Message))
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(NotImplemented, "method not implemented")
	want := "NOTIMPL: method not implemented"
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
}

func TestOk(t *testing.T) {
	if !Ok(nil) {
		t.Fatal("Ok(nil) should be true")
	}
	if Ok(Errorf(Fail, "x")) {
		t.Fatal("Ok(err) should be false")
	}
}
