package model

// ListingEntry is a single child in a Caddy JSON directory listing.
// Every field is optional in the wire format; a missing is_dir means a file.
type ListingEntry struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	IsDir bool   `json:"is_dir"`
}

// FileTask is one file discovered during the crawl: where it lives on the
// remote server and where it belongs relative to the local roots.
type FileTask struct {
	RelPath string
	URL     string
}
