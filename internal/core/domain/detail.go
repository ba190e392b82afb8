package domain

type LoadState string

const (
	LoadUnloaded LoadState = "unloaded"
	LoadLoaded   LoadState = "loaded"
)

// Overlay is the full-screen image state of a detail view. Image is the
// index into the package's annotated images when Open is true.
type Overlay struct {
	Open  bool `json:"open"`
	Image int  `json:"image"`
}

// PathCollision reports server paths that share one basename and so resolve
// to the same storage URL.
type PathCollision struct {
	Basename string   `json:"basename"`
	Sources  []string `json:"sources"`
}

// PathReport describes what happened while a record's server paths were
// mapped onto storage URLs.
type PathReport struct {
	Collisions []PathCollision `json:"collisions,omitempty"`
	// Unresolved lists server paths without a usable file name. Their
	// rewritten value is left empty.
	Unresolved []string `json:"unresolved,omitempty"`
}

// DetailSnapshot is what a detail screen renders from.
type DetailSnapshot struct {
	PackageID  string          `json:"package_id"`
	State      LoadState       `json:"state"`
	Package    *Package        `json:"package,omitempty"`
	Overlay    Overlay         `json:"overlay"`
	Collisions []PathCollision `json:"collisions,omitempty"`
	Unresolved []string        `json:"unresolved,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// OverlayImage returns the URL shown in the overlay, if open.
func (s DetailSnapshot) OverlayImage() (string, bool) {
	if !s.Overlay.Open || s.Package == nil {
		return "", false
	}
	if s.Overlay.Image < 0 || s.Overlay.Image >= len(s.Package.ImagesWithBoxes) {
		return "", false
	}
	image := s.Package.ImagesWithBoxes[s.Overlay.Image]
	return image, image != ""
}
