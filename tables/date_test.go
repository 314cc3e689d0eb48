package tables

import "testing"

func TestDateJulianRoundTrip(t *testing.T) {
	cases := []Date{
		{Year: 1979, Month: 12, Day: 31},
		{Year: 2024, Month: 2, Day: 29}, // leap day
		{Year: 2000, Month: 1, Day: 1},
		{Year: 2099, Month: 12, Day: 31},
	}
	for _, d := range cases {
		got := dateFromJulian(d.julian())
		if got != d {
			t.Errorf("julian round trip: %s -> %d -> %s", d, d.julian(), got)
		}
	}
}

func TestDateAddDays(t *testing.T) {
	d := Date{Year: 2024, Month: 2, Day: 28}
	if got := d.AddDays(1); got != (Date{Year: 2024, Month: 2, Day: 29}) {
		t.Errorf("expected leap day, got %s", got)
	}
	if got := d.AddDays(2); got != (Date{Year: 2024, Month: 3, Day: 1}) {
		t.Errorf("expected 2024-03-01, got %s", got)
	}
}

func TestDateSub(t *testing.T) {
	a := Date{Year: 2024, Month: 3, Day: 10}
	b := Date{Year: 2024, Month: 3, Day: 1}
	if got := a.Sub(b); got != 9 {
		t.Errorf("expected 9 days, got %d", got)
	}
	if got := b.Sub(a); got != -9 {
		t.Errorf("expected -9 days, got %d", got)
	}
}

func TestDateOrdering(t *testing.T) {
	a := Date{Year: 2024, Month: 1, Day: 1}
	b := Date{Year: 2024, Month: 6, Day: 1}
	if !a.Before(b) || b.Before(a) {
		t.Errorf("expected %s before %s", a, b)
	}
	if !b.After(a) {
		t.Errorf("expected %s after %s", b, a)
	}
}

func TestWireDateRoundTrip(t *testing.T) {
	d := Date{Year: 2024, Month: 3, Day: 15}
	wire, err := EncodeWireDate(d)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got := DecodeWireDate(wire)
	if got != d {
		t.Errorf("wire round trip: got %s, want %s", got, d)
	}
}

func TestWireDateZero(t *testing.T) {
	if got := DecodeWireDate(0); !got.IsZero() {
		t.Errorf("expected zero date for wire offset 0, got %s", got)
	}
	wire, err := EncodeWireDate(Date{})
	if err != nil || wire != 0 {
		t.Errorf("expected zero wire value for zero date, got %d, %v", wire, err)
	}
}

func TestDateIsValid(t *testing.T) {
	if !(Date{Year: 2024, Month: 2, Day: 29}).IsValid() {
		t.Error("2024-02-29 should be valid (leap year)")
	}
	if (Date{Year: 2023, Month: 2, Day: 29}).IsValid() {
		t.Error("2023-02-29 should be invalid (non-leap year)")
	}
	if (Date{Year: 2024, Month: 13, Day: 1}).IsValid() {
		t.Error("month 13 should be invalid")
	}
}
