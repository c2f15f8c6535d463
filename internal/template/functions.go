package template

import "svgcache-api/internal/imagecache"

// location renders the public path of a cached image.
func location(name string) string {
	return imagecache.Location(name)
}
