package chat

import "strings"

type Intent int

const (
	IntentText Intent = iota
	IntentImage
)

func (i Intent) String() string {
	if i == IntentImage {
		return "image"
	}
	return "text"
}

// Classifier routes an outgoing message to text completion or image generation.
type Classifier interface {
	Classify(text string) Intent
}

var DefaultImageKeywords = []string{
	"create image", "generate image", "make image", "draw", "create a picture",
	"generate a photo", "make a photo", "create photo", "show me",
}

// KeywordClassifier picks the image path when the text contains any of its
// phrases, ignoring case. It is a heuristic; false positives are accepted.
type KeywordClassifier struct {
	keywords []string
}

func NewKeywordClassifier(keywords ...string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = DefaultImageKeywords
	}
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lower = append(lower, k)
		}
	}
	return &KeywordClassifier{keywords: lower}
}

func (c *KeywordClassifier) Classify(text string) Intent {
	text = strings.ToLower(text)
	for _, k := range c.keywords {
		if strings.Contains(text, k) {
			return IntentImage
		}
	}
	return IntentText
}
