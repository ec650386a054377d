package payload

// MessageResponse is the simplest response returned by the server.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
}

// A VideoMeta describes a single servable file.
type VideoMeta struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func NewVideoMeta(name string, size int64, contentType string) VideoMeta {
	return VideoMeta{Name: name, Size: size, ContentType: contentType}
}

// GetMetadataResponse is the data returned by the video info endpoint.
type GetMetadataResponse struct {
	Metadata *VideoMeta `json:"meta"`
}
