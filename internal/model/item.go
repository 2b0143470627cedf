package model

// Item is a category of collectible material a point can accept.
type Item struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`

	// Image is the default icon file name under /uploads/.
	Image string `json:"-"`
	// HasIcon reports whether an uploaded icon replaces the default one.
	HasIcon bool `json:"-"`
}
