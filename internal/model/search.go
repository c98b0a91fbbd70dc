package model

// WebResult is a single hit from the web search API.
type WebResult struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// FetchedPage is the outcome of fetching one URL to plaintext.
type FetchedPage struct {
	URL         string `json:"url"`
	OK          bool   `json:"ok"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Title       string `json:"title,omitempty"`
	Text        string `json:"text,omitempty"`
	HTML        string `json:"-"`
}
