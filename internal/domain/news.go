package domain

import "time"

type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"publishedAt"`
	Categories  []string  `json:"categories"`
}

type Article struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	HeroImage   string   `json:"heroImage,omitempty"`
	BodyHTML    string   `json:"bodyHtml"`
	Images      []string `json:"images"`
}

type Image struct {
	ContentType string
	Data        []byte
}
