package geo

import "testing"

func TestCountryFromAddress(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
		ok   bool
	}{
		{
			name: "trailing code after semicolons",
			addr: "12 HARBOUR ST; SYDNEY; NSW 2000; AU",
			want: "AU",
			ok:   true,
		},
		{
			name: "code not in last part",
			addr: "FRANKFURT; DE; ATTN WAREHOUSE 3",
			want: "DE",
			ok:   true,
		},
		{
			name: "lowercase code",
			addr: "shanghai pudong; cn",
			want: "CN",
			ok:   true,
		},
		{
			name: "spelled out country name",
			addr: "VIA ROMA 10, MILANO, ITALY",
			want: "IT",
			ok:   true,
		},
		{
			name: "numeric two-char token skipped",
			addr: "UNIT 42; GERMANY",
			want: "DE",
			ok:   true,
		},
		{
			name: "nothing recognizable",
			addr: "WAREHOUSE 7 DOCK 3",
			want: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CountryFromAddress(tt.addr)
			if ok != tt.ok || got != tt.want {
				t.Errorf("CountryFromAddress(%q) = %q, %v; want %q, %v", tt.addr, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAUZone(t *testing.T) {
	tests := []struct {
		addr string
		want int
	}{
		{"100 COLLINS ST MELBOURNE VIC", 1},
		{"BRISBANE QLD 4000", 2},
		{"SYDNEY NSW", 3},
		{"CANBERRA ACT", 4},
		{"ADELAIDE", 5},
		{"PERTH WA", 5},
		{"HOBART TAS", 5},
		{"DARWIN NT", 5},
		// State name beats the embedded short code: "SOUTH AUSTRALIA"
		// must not resolve through a partial token.
		{"REGIONAL DEPOT SOUTH AUSTRALIA", 5},
		{"SOMEWHERE NEW SOUTH WALES", 3},
		{"WESTERN AUSTRALIA GOLDFIELDS", 5},
		// City code tokens.
		{"DEPOT MEL 3029", 1},
		{"SYD AIRPORT FREIGHT", 3},
		// Short state code as standalone token only.
		{"WAGGA WAGGA NSW", 3},
		{"GERALDTON WA", 5},
		// Unknown: rest of Australia.
		{"ALICE SPRINGS OUTBACK", 5},
		{"", 5},
	}

	for _, tt := range tests {
		if got := AUZone(tt.addr); got != tt.want {
			t.Errorf("AUZone(%q) = %d, want %d", tt.addr, got, tt.want)
		}
	}
}

func TestAUZone_CaseInsensitiveAndIdempotent(t *testing.T) {
	addrs := []string{"Melbourne VIC", "melbourne vic", "MELBOURNE VIC"}
	for _, addr := range addrs {
		first := AUZone(addr)
		second := AUZone(addr)
		if first != 1 || second != 1 {
			t.Errorf("AUZone(%q) = %d then %d, want 1 both times", addr, first, second)
		}
	}
}

func TestRequireAUZone(t *testing.T) {
	if _, err := RequireAUZone("   "); err == nil {
		t.Error("RequireAUZone(blank) = nil error, want ErrAddressUnparsable")
	}
	zone, err := RequireAUZone("SYDNEY NSW")
	if err != nil || zone != 3 {
		t.Errorf("RequireAUZone(SYDNEY NSW) = %d, %v; want 3, nil", zone, err)
	}
}
