package transfer

import "testing"

func TestAsciiInjectAddsCRBeforeLF(t *testing.T) {
	a := &AsciiInject{}
	out, err := a.Convert([]byte("foo\nbar\n"))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if string(out) != "foo\r\nbar\r\n" {
		t.Fatalf("got %q", out)
	}
}

func TestAsciiInjectDefersCROverChunkBoundary(t *testing.T) {
	a := &AsciiInject{}
	out1, _ := a.Convert([]byte("foo\r"))
	out2, _ := a.Convert([]byte("\nbar"))
	if string(out1) != "foo" {
		t.Fatalf("first chunk = %q, want %q", out1, "foo")
	}
	if string(out2) != "\r\nbar" {
		t.Fatalf("second chunk = %q, want %q", out2, "\r\nbar")
	}
	flushed, _ := a.Flush()
	if len(flushed) != 0 {
		t.Fatalf("unexpected trailing flush %q", flushed)
	}
}

func TestAsciiInjectFlushesPendingCRAtEOF(t *testing.T) {
	a := &AsciiInject{}
	// A lone trailing \r with no following \n must surface on Flush, not
	// be silently dropped or merged into a phantom \r\n.
	out, _ := a.Convert([]byte("abc\r"))
	if string(out) != "abc" {
		t.Fatalf("got %q, want %q", out, "abc")
	}
	flushed, err := a.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if string(flushed) != "\r" {
		t.Fatalf("flushed = %q, want %q", flushed, "\r")
	}
}

func TestAsciiStripRoundTripsWithInject(t *testing.T) {
	inject := &AsciiInject{}
	strip := &AsciiStrip{}

	src := "one\ntwo\nthree\n"
	wire, err := inject.Convert([]byte(src))
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	back, err := strip.Convert(wire)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if string(back) != src {
		t.Fatalf("round trip = %q, want %q", back, src)
	}
}

func TestAsciiStripDefersCROverChunkBoundary(t *testing.T) {
	strip := &AsciiStrip{}
	out1, _ := strip.Convert([]byte("foo\r"))
	out2, _ := strip.Convert([]byte("\nbar"))
	if string(out1) != "foo" {
		t.Fatalf("first chunk = %q, want %q", out1, "foo")
	}
	if string(out2) != "\nbar" {
		t.Fatalf("second chunk = %q, want %q", out2, "\nbar")
	}
}

func TestAsciiStripPreservesLoneCR(t *testing.T) {
	strip := &AsciiStrip{}
	// A \r not followed by \n is not a line ending and must survive.
	out, _ := strip.Convert([]byte("a\rb"))
	if string(out) != "a\rb" {
		t.Fatalf("got %q, want %q", out, "a\rb")
	}
}
