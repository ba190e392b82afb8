package domain

import "strings"

// PackageStatus is the backend-driven lifecycle of a package. Values are
// ordered; the zero value is StatusUnknown.
type PackageStatus int

const (
	StatusUnknown PackageStatus = iota
	StatusPreprocessing
	StatusDetecting
	StatusAnalyzing
	StatusDeduplicating
	StatusCreatingForm
	StatusComplete
)

var statusLabels = map[PackageStatus]string{
	StatusPreprocessing: "Preprocessing",
	StatusDetecting:     "Detecting Form Boxes with YOLO",
	StatusAnalyzing:     "Analyzing Form Boxes With GPT4o",
	StatusDeduplicating: "Deduplicating Form Fields",
	StatusCreatingForm:  "Creating Typeform Form",
	StatusComplete:      "Complete",
}

func (s PackageStatus) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// IsTerminal reports whether no further backend processing will occur.
func (s PackageStatus) IsTerminal() bool {
	return s == StatusComplete
}

func (s PackageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts any label. Labels outside the lifecycle decode to
// StatusUnknown so one unexpected value does not reject a whole record.
func (s *PackageStatus) UnmarshalText(text []byte) error {
	parsed, _ := ParseStatus(string(text))
	*s = parsed
	return nil
}

// ParseStatus maps a normalized wire label to a status. Matching is exact:
// "complete" is not Complete.
func ParseStatus(label string) (PackageStatus, bool) {
	for status, known := range statusLabels {
		if known == label {
			return status, true
		}
	}
	return StatusUnknown, false
}

// NormalizeStatusText strips surrounding whitespace and one pair of wrapping
// quotes from a raw status response body.
func NormalizeStatusText(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, `"`)
	text = strings.TrimSuffix(text, `"`)
	return strings.TrimSpace(text)
}

// StatusReading is one answer from the status endpoint.
type StatusReading struct {
	Status PackageStatus `json:"status"`
	Text   string        `json:"text"`
}

// ReadStatus normalizes a raw status body and parses it.
func ReadStatus(raw string) StatusReading {
	text := NormalizeStatusText(raw)
	status, _ := ParseStatus(text)
	return StatusReading{Status: status, Text: text}
}
