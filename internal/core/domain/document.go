package domain

// Metadata field names as written by the ingestion pipeline.
const (
	FieldFrom        = "From"
	FieldTo          = "To"
	FieldCc          = "Cc"
	FieldDate        = "Date"
	FieldSubject     = "Subject"
	FieldAttachment  = "Attachment"
	FieldThread      = "Thread"
	FieldImageLookup = "image_lookup"
)

// DisplayFields is the rendering order of metadata fields.
var DisplayFields = []string{
	FieldFrom,
	FieldTo,
	FieldCc,
	FieldDate,
	FieldSubject,
	FieldAttachment,
	FieldThread,
}

// Document is one scanned email as stored in the index. Metadata values are
// list literals such as "['a@b.gov', 'c@d.gov']"; "[]" marks an empty field.
// ImageRefs holds the page text names, in page order.
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	ImageRefs []string          `json:"image_refs"`
}

type MetadataField struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

type PageImage struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
	URL     string `json:"url"`
}

// Result is a document prepared for display.
type Result struct {
	ID         string          `json:"id"`
	Rank       int             `json:"rank"`
	Score      float64         `json:"score"`
	Content    string          `json:"content"`
	Metadata   []MetadataField `json:"metadata"`
	Images     []PageImage     `json:"images"`
	ArchiveURL string          `json:"archive_url,omitempty"`
}
