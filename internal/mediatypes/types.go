package mediatypes

// VideoExtensions maps file extensions to whether they are supported video
// formats. This is the supported-format table consulted by the scanner:
// a file is a library entry only if its extension is a key here.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	// Images (thumbnail and sprite outputs)
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",

	// Sprite cue files
	".vtt": "text/vtt",
}

// DefaultVideoMime is returned for unrecognized video extensions.
const DefaultVideoMime = "video/mp4"

// imageFallbacks is the ordered set of known image families tried for
// extensions missing from the table. Matching is by extension prefix so
// historical variants (.jpe, .jfif-style suffixes) still resolve.
var imageFallbacks = []struct {
	prefix string
	mime   string
}{
	{".jp", "image/jpeg"},
	{".pn", "image/png"},
	{".we", "image/webp"},
	{".gi", "image/gif"},
}

// IsVideo reports whether ext is a supported video extension.
// The extension must be lowercase and include the leading dot.
func IsVideo(ext string) bool {
	return VideoExtensions[ext]
}

// VideoMime returns the MIME type for a video file extension.
// Unknown extensions resolve to DefaultVideoMime rather than failing;
// the player decides what it can actually play.
func VideoMime(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return DefaultVideoMime
}

// AssetMime returns the MIME type for a derived-asset file extension
// (thumbnails, sprite sheets, cue files). Unknown image-like extensions
// fall back through imageFallbacks in order; anything else is served as
// a generic binary.
func AssetMime(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	for _, fb := range imageFallbacks {
		if len(ext) >= len(fb.prefix) && ext[:len(fb.prefix)] == fb.prefix {
			return fb.mime
		}
	}
	return "application/octet-stream"
}
