package web

import (
	"embed"
	"io/fs"
	"log"
)

//go:embed uploads
var content embed.FS

// UploadsFS returns the default item icons served under /uploads/.
func UploadsFS() fs.FS {
	sub, err := fs.Sub(content, "uploads")
	if err != nil {
		log.Fatalf("failed to create uploads sub-filesystem: %v", err)
	}
	return sub
}
