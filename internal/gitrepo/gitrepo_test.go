package gitrepo

import "testing"

func TestValidBranchName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"feature/add-user-authentication", true},
		{"hotfix/payment-bug", true},
		{"bugfix/a", true},
		{"release/v2", true},
		{"main", false},
		{"feature/Has-Upper", false},
		{"feature/", false},
		{"weird/type-not-allowed", false},
	}
	for _, c := range cases {
		got := ValidBranchName(c.name)
		if got != c.want {
			t.Errorf("ValidBranchName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestValidBranchName_LengthBoundary(t *testing.T) {
	// "feature/" is 8 chars; pad to exactly 80 and 81.
	at80 := "feature/" + repeat("a", 72)
	at81 := "feature/" + repeat("a", 73)
	if len(at80) != 80 {
		t.Fatalf("test fixture wrong length: %d", len(at80))
	}
	if !ValidBranchName(at80) {
		t.Errorf("expected 80-char name to be valid")
	}
	if len(at81) != 81 {
		t.Fatalf("test fixture wrong length: %d", len(at81))
	}
	if ValidBranchName(at81) {
		t.Errorf("expected 81-char name to be rejected")
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
