package fingerprint

import (
	"testing"
)

func TestFingerprintDeterminism(t *testing.T) {
	build := func() ChartData {
		return ChartData{
			"hindu":     120.5,
			"buddhist":  30,
			"christian": 4,
			"wards": map[string]any{
				"ward_1": []any{1, 2, 3},
				"ward_2": nil,
			},
		}
	}

	first, err := Fingerprint(build())
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Fingerprint(build())
		if err != nil {
			t.Fatalf("fingerprint: %v", err)
		}
		if again != first {
			t.Fatalf("fingerprint not deterministic: %s != %s", again, first)
		}
	}
	if len(first) != 64 {
		t.Fatalf("expected sha256 hex digest, got %q", first)
	}
}

func TestFingerprintKeyOrderIndependence(t *testing.T) {
	a := ChartData{}
	a["male"] = 100
	a["female"] = 110
	a["other"] = 2

	b := ChartData{}
	b["other"] = 2
	b["female"] = 110
	b["male"] = 100

	fpA, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	fpB, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fpA != fpB {
		t.Fatalf("insertion order changed fingerprint: %s != %s", fpA, fpB)
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := ChartData{"A": 10, "B": 20}
	cases := []ChartData{
		{"A": 10, "B": 25},
		{"A": 10, "C": 20},
		{"A": 10},
		{"A": 10, "B": 20, "C": 0},
		{"A": 10, "B": "20"},
		{"A": 10, "B": map[string]any{"x": 20}},
	}

	fpBase, err := Fingerprint(base)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	for i, c := range cases {
		fp, err := Fingerprint(c)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if fp == fpBase {
			t.Fatalf("case %d: structurally different payload produced identical fingerprint", i)
		}
	}
}

func TestFingerprintTypeTags(t *testing.T) {
	asInt, err := Fingerprint(ChartData{"v": 1})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	asString, err := Fingerprint(ChartData{"v": "1"})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	asBool, err := Fingerprint(ChartData{"v": true})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if asInt == asString || asInt == asBool || asString == asBool {
		t.Fatalf("values of different types collided: %s %s %s", asInt, asString, asBool)
	}
}

func TestFingerprintNumericWidths(t *testing.T) {
	asInt, err := Fingerprint(ChartData{"v": int32(7)})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	asInt64, err := Fingerprint(ChartData{"v": int64(7)})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if asInt != asInt64 {
		t.Fatalf("same integer value with different widths diverged")
	}
}

func TestFingerprintUnsupportedKinds(t *testing.T) {
	if _, err := Fingerprint(ChartData{"fn": func() {}}); err == nil {
		t.Fatalf("expected error for func value")
	}
	if _, err := Fingerprint(ChartData{"ch": make(chan int)}); err == nil {
		t.Fatalf("expected error for channel value")
	}
	if _, err := Fingerprint(map[int]any{1: "x"}); err == nil {
		t.Fatalf("expected error for non-string map keys")
	}
}

func TestFingerprintTypedContainers(t *testing.T) {
	generic, err := Fingerprint(ChartData{"v": []any{1, 2}})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	typed, err := Fingerprint(ChartData{"v": []int{1, 2}})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if generic != typed {
		t.Fatalf("equivalent slices diverged: %s != %s", generic, typed)
	}
}
