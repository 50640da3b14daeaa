package normalize

import (
	"testing"
)

func TestParseAddress(t *testing.T) {
	parser := NewAddressParser()

	tests := []struct {
		name   string
		street string
		city   string
		state  string
		zip    string
		want   Address
	}{
		{
			name:   "simple street with full words",
			street: "123 Main Street",
			city:   "Raleigh",
			state:  "North Carolina",
			zip:    "27601",
			want:   Address{HouseNumber: "123", Street: "MAIN ST", City: "RALEIGH", State: "NC", Zip: "27601"},
		},
		{
			name:   "apartment split into unit",
			street: "456 Oak Avenue, Apt 2B",
			city:   "Charlotte",
			state:  "NC",
			zip:    "28202-1234",
			want:   Address{HouseNumber: "456", Street: "OAK AVE", Unit: "APT 2B", City: "CHARLOTTE", State: "NC", Zip: "28202"},
		},
		{
			name:   "directional abbreviated",
			street: "1000 West Trade Street Suite 100",
			city:   "Charlotte",
			state:  "NORTH CAROLINA",
			zip:    "28202",
			want:   Address{HouseNumber: "1000", Street: "W TRADE ST", Unit: "SUITE 100", City: "CHARLOTTE", State: "NC", Zip: "28202"},
		},
		{
			name:   "saint city contraction",
			street: "789 Pine Blvd",
			city:   "Saint Pauls",
			state:  "nc",
			zip:    "28384",
			want:   Address{HouseNumber: "789", Street: "PINE BLVD", City: "ST PAULS", State: "NC", Zip: "28384"},
		},
		{
			name:   "no house number",
			street: "Rural Route 4",
			city:   "Durham",
			state:  "NC",
			zip:    "27701",
			want:   Address{Street: "RURAL ROUTE 4", City: "DURHAM", State: "NC", Zip: "27701"},
		},
		{
			name:   "empty input keeps fields empty",
			street: "",
			city:   "",
			state:  "",
			zip:    "",
			want:   Address{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Parse(tt.street, tt.city, tt.state, tt.zip)
			if got.HouseNumber != tt.want.HouseNumber {
				t.Errorf("HouseNumber = %q, want %q", got.HouseNumber, tt.want.HouseNumber)
			}
			if got.Street != tt.want.Street {
				t.Errorf("Street = %q, want %q", got.Street, tt.want.Street)
			}
			if got.Unit != tt.want.Unit {
				t.Errorf("Unit = %q, want %q", got.Unit, tt.want.Unit)
			}
			if got.City != tt.want.City {
				t.Errorf("City = %q, want %q", got.City, tt.want.City)
			}
			if got.State != tt.want.State {
				t.Errorf("State = %q, want %q", got.State, tt.want.State)
			}
			if got.Zip != tt.want.Zip {
				t.Errorf("Zip = %q, want %q", got.Zip, tt.want.Zip)
			}
		})
	}
}

func TestParseAddressRetainsRaw(t *testing.T) {
	parser := NewAddressParser()
	got := parser.Parse("???", "", "", "")
	if got.Raw == "" {
		t.Error("raw text should be retained even when nothing parses")
	}
	if got.HouseNumber != "" || got.Zip != "" {
		t.Errorf("unparseable input should leave fields empty, got %+v", got)
	}
}

func TestNormalizeZip(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"27601", "27601"},
		{"28202-1234", "28202"},
		{"2760", "02760"},
		{"", ""},
		{"zip", ""},
	}

	for _, tt := range tests {
		if got := NormalizeZip(tt.input); got != tt.want {
			t.Errorf("NormalizeZip(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
