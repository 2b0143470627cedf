package model

import (
	"fmt"
	"math"
	"net/mail"
	"slices"
	"strings"
	"time"
)

// Unset is the sentinel value a selector holds before the user picks anything.
const Unset = "0"

// IsUnset reports whether a region or locality selection is empty.
func IsUnset(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == Unset
}

// Point is a registered collection point.
type Point struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Whatsapp  string    `json:"whatsapp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UF        string    `json:"uf"`
	City      string    `json:"city"`
	Items     []int64   `json:"items"`
	CreatedAt time.Time `json:"created_at"`
}

// PointInput is the submission shape for creating or replacing a point.
// Coordinates are pointers so a missing value can be told apart from zero.
type PointInput struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Whatsapp  string   `json:"whatsapp"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	UF        string   `json:"uf"`
	City      string   `json:"city"`
	Items     []int64  `json:"items"`
}

// Normalize trims text fields, upper-cases the UF and removes duplicate item IDs.
func (in *PointInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Whatsapp = strings.TrimSpace(in.Whatsapp)
	in.UF = strings.ToUpper(strings.TrimSpace(in.UF))
	in.City = strings.TrimSpace(in.City)

	seen := make(map[int64]bool, len(in.Items))
	items := make([]int64, 0, len(in.Items))
	for _, id := range in.Items {
		if !seen[id] {
			seen[id] = true
			items = append(items, id)
		}
	}
	in.Items = items
}

// Validate checks the required scalar fields. It does not check that items exist;
// that happens inside the store transaction.
func (in *PointInput) Validate() error {
	ve := &ValidationError{}

	if in.Name == "" {
		ve.Add("name required")
	}
	if in.Email == "" {
		ve.Add("email required")
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		ve.Add("email is not a valid address")
	}
	if in.Whatsapp == "" {
		ve.Add("whatsapp required")
	}

	switch {
	case in.Latitude == nil:
		ve.Add("latitude required")
	case math.IsNaN(*in.Latitude) || math.IsInf(*in.Latitude, 0):
		ve.Add("latitude is not a number")
	case *in.Latitude < -90 || *in.Latitude > 90:
		ve.Add(fmt.Sprintf("latitude %g out of range", *in.Latitude))
	}
	switch {
	case in.Longitude == nil:
		ve.Add("longitude required")
	case math.IsNaN(*in.Longitude) || math.IsInf(*in.Longitude, 0):
		ve.Add("longitude is not a number")
	case *in.Longitude < -180 || *in.Longitude > 180:
		ve.Add(fmt.Sprintf("longitude %g out of range", *in.Longitude))
	}

	if IsUnset(in.UF) {
		ve.Add("uf required")
	} else if !IsRegionCode(in.UF) {
		ve.Add("uf must be a two-letter code")
	}
	if IsUnset(in.City) {
		ve.Add("city required")
	}

	for _, id := range in.Items {
		if id <= 0 {
			ve.Add(fmt.Sprintf("invalid item id %d", id))
			break
		}
	}

	if ve.Empty() {
		return nil
	}
	return ve
}

// IsRegionCode reports whether code is two upper-case ASCII letters.
func IsRegionCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// MaxFilterItems caps the item IDs a point listing can filter on.
const MaxFilterItems = 100

// PointFilter narrows a point listing. Zero values match everything.
type PointFilter struct {
	UF    string
	City  string
	Items []int64
}

// Validate rejects item filters longer than MaxFilterItems distinct IDs.
func (f PointFilter) Validate() error {
	seen := make(map[int64]bool, len(f.Items))
	for _, id := range f.Items {
		seen[id] = true
	}
	if len(seen) > MaxFilterItems {
		return &ValidationError{Problems: []string{
			fmt.Sprintf("items filter lists %d ids, at most %d allowed", len(seen), MaxFilterItems),
		}}
	}
	return nil
}

// SameItems reports whether two item ID sets are equal, ignoring order.
func SameItems(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
