package richtext

import "testing"

func TestBrTagConversion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple br tag",
			input:    "Line 1<br>Line 2",
			expected: "Line 1\nLine 2",
		},
		{
			name:     "Self-closing br tag with slash",
			input:    "Line 1<br/>Line 2",
			expected: "Line 1\nLine 2",
		},
		{
			name:     "Self-closing br tag with space",
			input:    "Line 1<br />Line 2",
			expected: "Line 1\nLine 2",
		},
		{
			name:     "BR in uppercase",
			input:    "Line 1<BR>Line 2<BR/>Line 3<BR />Line 4",
			expected: "Line 1\nLine 2\nLine 3\nLine 4",
		},
	}

	converter := NewConverter()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := converter.ToPlain(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestToPlain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "paragraphs",
			input:    "<p>序/</p><p>First paragraph</p><p></p><p></p><p>Second</p>",
			expected: "序/\n\nFirst paragraph\n\nSecond",
		},
		{
			name:     "links keep their target",
			input:    `See <a href="https://example.com" target="_blank">the site</a>`,
			expected: "See the site (https://example.com)",
		},
		{
			name:     "bare link",
			input:    `<a href="https://example.com">https://example.com</a>`,
			expected: "https://example.com",
		},
		{
			name:     "list items",
			input:    "<ul><li>one</li><li>two</li></ul>",
			expected: "• one\n• two",
		},
		{
			name:     "entities decoded after tags",
			input:    "<p>Tom &amp; Jerry &lt;b&gt;</p>",
			expected: "Tom & Jerry <b>",
		},
		{
			name:     "chapter lines survive",
			input:    "<p>00:00｜开场<br/>01:30 | 嘉宾介绍</p>",
			expected: "00:00｜开场\n01:30 | 嘉宾介绍",
		},
		{
			name:     "plain text untouched",
			input:    "no markup &amp; here",
			expected: "no markup & here",
		},
	}

	converter := NewConverter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := converter.ToPlain(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
