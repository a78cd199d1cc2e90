package supervisor

import "testing"

func TestParseLinkPath(t *testing.T) {
	cases := []struct {
		path    string
		wantIdx uint32
		wantOK  bool
	}{
		{"/xyz/openbmc_project/network/link/_33", 3, true},
		{"/xyz/openbmc_project/network/link/_312", 12, true},
		{"/xyz/openbmc_project/network/link/_30", 0, true},
		{"/xyz/openbmc_project/network/link/_3", 0, false},
		{"/xyz/openbmc_project/network/link/_3abc", 0, false},
		{"no marker here", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		idx, ok := ParseLinkPath(c.path)
		if ok != c.wantOK || (ok && idx != c.wantIdx) {
			t.Errorf("ParseLinkPath(%q) = (%d, %v), want (%d, %v)", c.path, idx, ok, c.wantIdx, c.wantOK)
		}
	}
}
