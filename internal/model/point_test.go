package model

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func ptr(f float64) *float64 { return &f }

func validInput() PointInput {
	return PointInput{
		Name:      "Eco Center",
		Email:     "a@b.com",
		Whatsapp:  "5511999999999",
		Latitude:  ptr(-23.5),
		Longitude: ptr(-46.6),
		UF:        "SP",
		City:      "São Paulo",
		Items:     []int64{1, 3},
	}
}

func TestValidateAcceptsValidInput(t *testing.T) {
	in := validInput()
	if err := in.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	in.Items = nil
	if err := in.Validate(); err != nil {
		t.Fatalf("empty item selection should be valid, got %v", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PointInput)
		problem string
	}{
		{"name", func(in *PointInput) { in.Name = "" }, "name required"},
		{"email", func(in *PointInput) { in.Email = "" }, "email required"},
		{"bad email", func(in *PointInput) { in.Email = "not-an-email" }, "email is not a valid address"},
		{"whatsapp", func(in *PointInput) { in.Whatsapp = "" }, "whatsapp required"},
		{"latitude", func(in *PointInput) { in.Latitude = nil }, "latitude required"},
		{"longitude", func(in *PointInput) { in.Longitude = nil }, "longitude required"},
		{"latitude range", func(in *PointInput) { in.Latitude = ptr(91) }, "latitude 91 out of range"},
		{"longitude range", func(in *PointInput) { in.Longitude = ptr(-181) }, "longitude -181 out of range"},
		{"uf sentinel", func(in *PointInput) { in.UF = Unset }, "uf required"},
		{"uf length", func(in *PointInput) { in.UF = "SPX" }, "uf must be a two-letter code"},
		{"uf digit", func(in *PointInput) { in.UF = "S1" }, "uf must be a two-letter code"},
		{"uf symbols", func(in *PointInput) { in.UF = "1!" }, "uf must be a two-letter code"},
		{"uf multibyte", func(in *PointInput) { in.UF = "É" }, "uf must be a two-letter code"},
		{"latitude nan", func(in *PointInput) { in.Latitude = ptr(math.NaN()) }, "latitude is not a number"},
		{"longitude inf", func(in *PointInput) { in.Longitude = ptr(math.Inf(-1)) }, "longitude is not a number"},
		{"city sentinel", func(in *PointInput) { in.City = Unset }, "city required"},
		{"item id", func(in *PointInput) { in.Items = []int64{1, 0} }, "invalid item id 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			err := in.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(ve.Error(), tt.problem) {
				t.Errorf("expected problem %q in %q", tt.problem, ve.Error())
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	in := PointInput{
		Name:  "  Eco  ",
		UF:    " sp ",
		City:  " Santos ",
		Items: []int64{3, 1, 3, 1},
	}
	in.Normalize()

	if in.Name != "Eco" || in.UF != "SP" || in.City != "Santos" {
		t.Errorf("unexpected normalized fields: %+v", in)
	}
	if len(in.Items) != 2 || in.Items[0] != 3 || in.Items[1] != 1 {
		t.Errorf("expected deduplicated items [3 1], got %v", in.Items)
	}
}

func TestSameItems(t *testing.T) {
	if !SameItems([]int64{1, 3}, []int64{3, 1}) {
		t.Error("expected order-independent equality")
	}
	if SameItems([]int64{1}, []int64{1, 3}) {
		t.Error("expected different sets to differ")
	}
	if !SameItems(nil, []int64{}) {
		t.Error("expected nil and empty to be equal")
	}
}

func TestPointFilterValidate(t *testing.T) {
	ids := make([]int64, 0, MaxFilterItems+1)
	for i := range MaxFilterItems {
		ids = append(ids, int64(i+1))
	}

	// Repeats do not count against the cap.
	if err := (PointFilter{Items: append(ids, 1, 2, 3)}).Validate(); err != nil {
		t.Errorf("expected %d distinct ids to pass, got %v", MaxFilterItems, err)
	}

	err := PointFilter{Items: append(ids, MaxFilterItems+1)}.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError past the cap, got %v", err)
	}
}

func TestIsRegionCode(t *testing.T) {
	for code, want := range map[string]bool{
		"SP":  true,
		"RJ":  true,
		"sp":  false,
		"S1":  false,
		"1!":  false,
		"É":   false,
		"S":   false,
		"SPX": false,
	} {
		if got := IsRegionCode(code); got != want {
			t.Errorf("IsRegionCode(%q) = %v, want %v", code, got, want)
		}
	}
}
