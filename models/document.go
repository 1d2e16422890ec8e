package models

// Document is one unit of comparison in a similarity run. Text is already
// normalized (whitespace collapsed, trimmed, length capped).
type Document struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// Attachment is a raw file submitted with an article.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    []byte `json:"-"`
}

// AttachmentRef points at an attachment the service has to download itself.
type AttachmentRef struct {
	ID       string `json:"id" bson:"id"`
	Filename string `json:"filename" bson:"filename"`
	URL      string `json:"url" bson:"url"`
}

// DocumentExcerpt is the response-side view of a Document.
type DocumentExcerpt struct {
	ID          string `json:"id" bson:"id"`
	Filename    string `json:"filename" bson:"filename"`
	TextExcerpt string `json:"textExcerpt" bson:"text_excerpt"`
}
