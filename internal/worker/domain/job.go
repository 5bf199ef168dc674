package domain

// Job is one thumbnailing request decoded from a queue message
type Job struct {
	Original     string                 `json:"original"`
	Descriptions []ThumbnailDescription `json:"descriptions"`
}

// ThumbnailDescription describes a single rendition of the original image
type ThumbnailDescription struct {
	Suffix string `json:"suffix"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format,omitempty"`
	// Path overrides the derived destination key when set
	Path     string `json:"path,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Quality  int    `json:"quality,omitempty"`
}

// Message is a raw queue message borrowed by the worker for one job
type Message struct {
	Handle string
	Body   []byte
}

// RenditionResult is the outcome of one rendition unit
type RenditionResult struct {
	Description ThumbnailDescription
	Key         string
	Err         error
}

// Succeeded reports whether the rendition was rendered and stored
func (r RenditionResult) Succeeded() bool {
	return r.Err == nil
}
