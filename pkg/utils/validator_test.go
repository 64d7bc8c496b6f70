package utils

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"ana@corp.test", false},
		{"first.last+tag@sub.example.org", false},
		{"", true},
		{"not-an-address", true},
		{"missing@tld", true},
		{"@example.org", true},
	}

	for _, tt := range tests {
		err := ValidateEmail(tt.email)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
		}
	}
}

func TestValidateDocumentID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"doc-001.pdf", false},
		{"contract_v2.pdf", false},
		{"", true},
		{"../etc/passwd", true},
		{"a/b.pdf", true},
		{"a\\b.pdf", true},
	}

	for _, tt := range tests {
		err := ValidateDocumentID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateDocumentID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"tab\tand\nnewline", "tabandnewline"},
		{"null\x00byte", "nullbyte"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.in); got != tt.want {
			t.Errorf("SanitizeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
