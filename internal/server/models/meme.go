package models

import "time"

// Meme is a generated image and its running score.
type Meme struct {
	ID         string
	ImageURL   string
	Caption    string
	PromptUsed string
	ModelUsed  string
	Score      int
	HotScore   float64
	CreatedAt  time.Time
	Owner      Owner
}
