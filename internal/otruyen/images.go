package otruyen

import (
	"net/url"
	"strconv"
	"strings"
)

const DefaultImageQuality = 75

// ThumbURL is the CDN address of a comic's thumb_url.
func (c *Client) ThumbURL(thumb string) string {
	if thumb == "" {
		return ""
	}
	if u, err := url.Parse(thumb); err == nil && u.IsAbs() {
		return thumb
	}
	return c.cdn + "/uploads/comics/" + strings.TrimPrefix(thumb, "/")
}

// OptimizedImageURL asks the image CDN for a resized copy in the format the
// process capabilities allow.
func (c *Client) OptimizedImageURL(base string, width, quality int) string {
	return OptimizedImageURL(base, width, quality, c.caps.ImageFormat())
}

// SrcSet builds a srcset attribute value over widths.
func (c *Client) SrcSet(base string, widths []int) string {
	parts := make([]string, 0, len(widths))
	for _, w := range widths {
		parts = append(parts, c.OptimizedImageURL(base, w, DefaultImageQuality)+" "+strconv.Itoa(w)+"w")
	}
	return strings.Join(parts, ", ")
}

// OptimizedImageURL appends resize parameters to base. A non-positive
// quality uses DefaultImageQuality.
func OptimizedImageURL(base string, width, quality int, format string) string {
	if quality <= 0 {
		quality = DefaultImageQuality
	}
	q := url.Values{}
	q.Set("w", strconv.Itoa(width))
	q.Set("q", strconv.Itoa(quality))
	q.Set("f", format)
	q.Set("auto", "compress")

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
