// Package caps holds the runtime capabilities resolved once at start-up and
// handed to the components that need them.
package caps

import "fmt"

// Capabilities lists optional behaviors the process can rely on.
type Capabilities struct {
	// IdleScheduling lets low-priority prefetches wait for a quiet server.
	IdleScheduling bool
	// WebP makes the image URL builder ask the CDN for webp.
	WebP bool
}

// Detect resolves capabilities from configuration flags. It is called once;
// components never probe on their own.
func Detect(idle, webp bool) Capabilities {
	return Capabilities{IdleScheduling: idle, WebP: webp}
}

// ImageFormat is the format requested from the image CDN.
func (c Capabilities) ImageFormat() string {
	if c.WebP {
		return "webp"
	}
	return "jpg"
}

func (c Capabilities) String() string {
	return fmt.Sprintf("idle=%t webp=%t", c.IdleScheduling, c.WebP)
}
