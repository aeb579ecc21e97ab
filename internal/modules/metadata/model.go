package metadata

import (
	"encoding/json"
	"errors"
)

// ErrMetadataUnavailable wraps every gateway, transport and decode failure.
var ErrMetadataUnavailable = errors.New("metadata unavailable")

// Document is the off-chain JSON describing a shop or product. Missing
// fields decode to their zero values; no schema is enforced.
type Document struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// ImageIDs returns every image content id, the single image first.
func (d *Document) ImageIDs() []string {
	out := make([]string, 0, len(d.Images)+1)
	if d.Image != "" {
		out = append(out, d.Image)
	}
	for _, img := range d.Images {
		if img != "" && img != d.Image {
			out = append(out, img)
		}
	}
	return out
}

type PinResponse struct {
	CID string `json:"cid"`
}
