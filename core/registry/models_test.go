package registry

import (
	"reflect"
	"testing"
)

func TestDecode_coercesMalformedFields(t *testing.T) {
	empty := Default()

	tests := []struct {
		name string
		data string
		want Registry
	}{
		{name: "empty payload", data: ``, want: empty},
		{name: "not JSON", data: `registry`, want: empty},
		{name: "empty object", data: `{}`, want: empty},
		{
			name: "legacy three-field payload",
			data: `{"officer":["a@b.c"],"member":[],"rsvp":["d@e.f"]}`,
			want: Registry{Officer: []string{"a@b.c"}, Member: []string{}, RSVP: []string{"d@e.f"}, Announcement: []string{}},
		},
		{
			name: "non-array fields coerced one by one",
			data: `{"officer":"nope","member":42,"rsvp":["kept@e.f"],"announcement":{"x":1}}`,
			want: Registry{Officer: []string{}, Member: []string{}, RSVP: []string{"kept@e.f"}, Announcement: []string{}},
		},
		{
			name: "null fields",
			data: `{"officer":null,"member":null,"rsvp":null,"announcement":null}`,
			want: empty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode([]byte(tt.data)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode() = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestRegistry_Add_setSemantics(t *testing.T) {
	reg := Default()

	if !reg.Add(CategoryRSVP, "b@b.c") {
		t.Error("Add() = false for new key; want true")
	}
	if !reg.Add(CategoryRSVP, "a@b.c") {
		t.Error("Add() = false for new key; want true")
	}
	if reg.Add(CategoryRSVP, "a@b.c") {
		t.Error("Add() = true for duplicate key; want false")
	}

	want := []string{"a@b.c", "b@b.c"}
	if !reflect.DeepEqual(reg.RSVP, want) {
		t.Errorf("reg.RSVP = %v; want %v (sorted set)", reg.RSVP, want)
	}
	// categories are independent namespaces
	if reg.Has(CategoryMember, "a@b.c") {
		t.Error("Has() = true in an unrelated category; want false")
	}
}
