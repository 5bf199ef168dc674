package dto

// CreateThumbnailJobRequest is the body of POST /api/v1/thumbnails
type CreateThumbnailJobRequest struct {
	Original     string                    `json:"original" binding:"required"`
	Descriptions []ThumbnailDescriptionDTO `json:"descriptions" binding:"required,min=1,dive"`
}

// ThumbnailDescriptionDTO describes one requested rendition.
// At least one of Width and Height must be set; zero leaves that side free.
type ThumbnailDescriptionDTO struct {
	Suffix   string `json:"suffix" binding:"required"`
	Width    int    `json:"width" binding:"required_without=Height,gte=0"`
	Height   int    `json:"height" binding:"required_without=Width,gte=0"`
	Format   string `json:"format,omitempty" binding:"omitempty,oneof=jpg jpeg png gif tif tiff bmp webp"`
	Path     string `json:"path,omitempty"`
	Strategy string `json:"strategy,omitempty" binding:"omitempty,oneof=bounded fill strict"`
	Quality  int    `json:"quality,omitempty" binding:"omitempty,min=1,max=100"`
}

// CreateThumbnailJobResponse acknowledges a queued job
type CreateThumbnailJobResponse struct {
	Original     string `json:"original"`
	Descriptions int    `json:"descriptions"`
	Encoding     string `json:"encoding"`
	Status       string `json:"status"`
}

type ListRenditionsRequest struct {
	Original string `form:"original"`
	Format   string `form:"format"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListRenditionsResponse struct {
	Renditions []RenditionDTO `json:"renditions"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type RenditionDTO struct {
	Original  string `json:"original"`
	Key       string `json:"key"`
	Suffix    string `json:"suffix"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	WorkerID  string `json:"worker_id,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
