package chat

import "testing"

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()
	cases := []struct {
		text string
		want Intent
	}{
		{"draw a cat", IntentImage},
		{"Please GENERATE IMAGE of a sunset", IntentImage},
		{"show me a logo for my shop", IntentImage},
		{"tell me about cats", IntentText},
		{"how do I grow my store?", IntentText},
		// substring match: false positives are accepted
		{"explain the drawbacks", IntentImage},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.text); got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestKeywordClassifier_CustomKeywords(t *testing.T) {
	c := NewKeywordClassifier("Paint")
	if c.Classify("paint me a boat") != IntentImage {
		t.Fatalf("custom keyword not matched")
	}
	if c.Classify("draw a cat") != IntentText {
		t.Fatalf("default keywords should be replaced")
	}
}
