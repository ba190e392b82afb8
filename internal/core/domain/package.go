package domain

type FormFieldType string

const (
	FieldText           FormFieldType = "Text"
	FieldMultipleChoice FormFieldType = "Multiple Choice"
	FieldCheckbox       FormFieldType = "Checkbox"
)

func (t FormFieldType) Valid() bool {
	switch t {
	case FieldText, FieldMultipleChoice, FieldCheckbox:
		return true
	default:
		return false
	}
}

type FormField struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Type        FormFieldType `json:"formFieldType"`
}

// FilledOutPackage is one end-user submission collected through the external form.
type FilledOutPackage struct {
	PDFPath string `json:"pdfPath"`
	Email   string `json:"email"`
}

// Package is the backend's record of one document-processing job. The portal
// treats it as read-only between fetches.
type Package struct {
	ID                string             `json:"packageId"`
	Name              string             `json:"packageName"`
	Status            PackageStatus      `json:"packageStatus"`
	OriginalPDFPath   string             `json:"originalPdfPath"`
	RawPDFs           []string           `json:"rawPdfs,omitempty"`
	ImagesWithBoxes   []string           `json:"imagesWithBoxesPaths"`
	FormFields        []FormField        `json:"formFields"`
	FilledOutPackages []FilledOutPackage `json:"filledOutPackages"`
	TypeformID        string             `json:"typeformId"`
	TypeformURL       string             `json:"typeformUrl"`
}

// Clone returns a deep copy so callers can derive a new value without
// touching the fetched record.
func (p Package) Clone() Package {
	out := p
	out.RawPDFs = append([]string(nil), p.RawPDFs...)
	out.ImagesWithBoxes = append([]string(nil), p.ImagesWithBoxes...)
	out.FormFields = append([]FormField(nil), p.FormFields...)
	out.FilledOutPackages = append([]FilledOutPackage(nil), p.FilledOutPackages...)
	return out
}
