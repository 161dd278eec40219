package scanner

import (
	"errors"
	"testing"
)

// TestExpandRange tests usable-host expansion for common subnet sizes
func TestExpandRange(t *testing.T) {
	tests := []struct {
		cidr  string
		count int
		first string
		last  string
	}{
		{"192.168.1.0/24", 254, "192.168.1.1", "192.168.1.254"},
		{"192.168.1.0/30", 2, "192.168.1.1", "192.168.1.2"},
		{"10.0.0.0/29", 6, "10.0.0.1", "10.0.0.6"},
		{"10.0.0.0/31", 2, "10.0.0.0", "10.0.0.1"},
		{"10.0.0.7/32", 1, "10.0.0.7", "10.0.0.7"},
	}

	for _, tt := range tests {
		hosts, err := expandRange(tt.cidr)
		if err != nil {
			t.Errorf("expandRange(%q) returned error: %v", tt.cidr, err)
			continue
		}
		if len(hosts) != tt.count {
			t.Errorf("expandRange(%q) returned %d hosts, want %d", tt.cidr, len(hosts), tt.count)
			continue
		}
		if hosts[0] != tt.first {
			t.Errorf("expandRange(%q) first host = %s, want %s", tt.cidr, hosts[0], tt.first)
		}
		if hosts[len(hosts)-1] != tt.last {
			t.Errorf("expandRange(%q) last host = %s, want %s", tt.cidr, hosts[len(hosts)-1], tt.last)
		}
	}
}

// TestExpandRangeTooLarge tests that ranges wider than a /24 are rejected
func TestExpandRangeTooLarge(t *testing.T) {
	for _, cidr := range []string{"10.0.0.0/23", "10.0.0.0/16", "10.0.0.0/8"} {
		_, err := expandRange(cidr)
		if err == nil {
			t.Errorf("expandRange(%q) succeeded, want ErrRangeTooLarge", cidr)
			continue
		}
		if !errors.Is(err, ErrRangeTooLarge) {
			t.Errorf("expandRange(%q) error = %v, want ErrRangeTooLarge", cidr, err)
		}
	}
}

// TestExpandRangeInvalid tests malformed and unsupported inputs
func TestExpandRangeInvalid(t *testing.T) {
	for _, cidr := range []string{"", "not-a-cidr", "192.168.1.0", "2001:db8::/120"} {
		if _, err := expandRange(cidr); err == nil {
			t.Errorf("expandRange(%q) succeeded, want error", cidr)
		}
	}
}

// TestExpandRangeNonBaseAddress tests that a host address inside the range
// expands the whole subnet
func TestExpandRangeNonBaseAddress(t *testing.T) {
	hosts, err := expandRange("192.168.1.37/30")
	if err != nil {
		t.Fatalf("expandRange returned error: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("Expected 2 hosts, got %d", len(hosts))
	}
	if hosts[0] != "192.168.1.37" || hosts[1] != "192.168.1.38" {
		t.Errorf("Expected hosts .37/.38, got %v", hosts)
	}
}
