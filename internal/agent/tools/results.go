package tools

import (
	"math"
	"strings"
	"unicode/utf8"
)

const excerptLimit = 300

type EmailHit struct {
	ID         string  `json:"id"`
	Subject    string  `json:"subject"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Date       string  `json:"date"`
	Excerpt    string  `json:"excerpt"`
	Similarity float64 `json:"similarity"`
}

type ContactHit struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Notes      string  `json:"notes,omitempty"`
	Similarity float64 `json:"similarity"`
}

type SentEmail struct {
	ID      string `json:"id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= excerptLimit {
		return text
	}
	return string([]rune(text)[:excerptLimit]) + "..."
}
