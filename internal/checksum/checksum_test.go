package checksum

import (
	"testing"

	"airbnb-scraper/internal/scraper"
)

func sampleRecord() *scraper.ListingRecord {
	r := scraper.NewListingRecord("https://www.airbnb.com/rooms/123")
	r.Title = "Cabin in the woods"
	r.Price = "$120 night"
	r.Features = []string{"Wifi", "Kitchen"}
	r.HouseDetails = []string{"2 guests"}
	return r
}

func TestFingerprint(t *testing.T) {
	gen := NewGenerator()

	hash1 := gen.Fingerprint(sampleRecord())
	hash2 := gen.Fingerprint(sampleRecord())

	// Детерминированный
	if hash1 != hash2 {
		t.Errorf("Fingerprint not deterministic: %s != %s", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("Fingerprint wrong length: %d, expected 64", len(hash1))
	}

	tests := []struct {
		name   string
		mutate func(r *scraper.ListingRecord)
		same   bool
	}{
		{"title change", func(r *scraper.ListingRecord) { r.Title = "Other" }, false},
		{"feature order", func(r *scraper.ListingRecord) { r.Features = []string{"Kitchen", "Wifi"} }, false},
		{"features moved to details", func(r *scraper.ListingRecord) {
			r.Features = []string{"Wifi"}
			r.HouseDetails = []string{"Kitchen", "2 guests"}
		}, false},
		{"region ignored", func(r *scraper.ListingRecord) { r.Region, r.Country = "Texas", "USA" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleRecord()
			tt.mutate(r)
			if got := gen.Fingerprint(r) == hash1; got != tt.same {
				t.Errorf("Fingerprint equal = %v, want %v", got, tt.same)
			}
		})
	}
}

func TestFingerprintNilRecord(t *testing.T) {
	if got := NewGenerator().Fingerprint(nil); got != "" {
		t.Errorf("Fingerprint(nil) = %q, want empty", got)
	}
}
