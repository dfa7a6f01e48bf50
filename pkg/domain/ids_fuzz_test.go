//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseDonorID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
func FuzzParseDonorID(f *testing.F) {
	f.Add("")
	f.Add("1")
	f.Add("0")
	f.Add("-1")
	f.Add("9223372036854775807")
	f.Add("'; DROP TABLE donors;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseDonorID(input)

		if err == nil {
			if !id.Valid() {
				t.Errorf("accepted non-positive id %d", id)
			}
			roundTrip, err2 := ParseDonorID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}
	})
}
