package sanitize

import "testing"

func TestForStoryID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"simple string", "button", "button"},
		{"with spaces", "Primary Button", "primary-button"},
		{"with slashes", "Atoms/Button", "atoms-button"},
		{"special characters", "hello@world#foo", "hello-world-foo"},
		{"multiple dashes", "hello---world", "hello-world"},
		{"leading/trailing punctuation", "--hello world!", "hello-world"},
		{"uppercase", "HelloWorld", "helloworld"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ForStoryID(tt.input)
			if result != tt.expected {
				t.Errorf("ForStoryID(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestToID(t *testing.T) {
	id, err := ToID("Atoms/Button", "Primary")
	if err != nil {
		t.Fatalf("ToID() error = %v", err)
	}
	if id != "atoms-button--primary" {
		t.Errorf("ToID() = %q", id)
	}

	if _, err := ToID("!!!", "Primary"); err == nil {
		t.Error("expected error for title without alphanumerics")
	}
}

func TestStoryNameFromExport(t *testing.T) {
	tests := map[string]string{
		"primary":        "Primary",
		"primaryButton":  "Primary Button",
		"WithIcon2":      "With Icon 2",
		"snake_case_key": "Snake Case Key",
	}
	for in, want := range tests {
		if got := StoryNameFromExport(in); got != want {
			t.Errorf("StoryNameFromExport(%q) = %q, want %q", in, got, want)
		}
	}
}
