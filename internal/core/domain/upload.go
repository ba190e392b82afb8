package domain

import "time"

// UploadFile is one locally selected file submitted with a package.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileSummary describes a selected file for the upload screen's file list.
type FileSummary struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Pages   int    `json:"pages,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type UploadState string

const (
	UploadIdle       UploadState = "idle"
	UploadSubmitting UploadState = "submitting"
	UploadPolling    UploadState = "polling"
	UploadSucceeded  UploadState = "succeeded"
	UploadFailed     UploadState = "failed"
	UploadCancelled  UploadState = "cancelled"
)

// Settled reports whether the state ends a submission.
func (s UploadState) Settled() bool {
	switch s {
	case UploadSucceeded, UploadFailed, UploadCancelled:
		return true
	default:
		return false
	}
}

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

type Notification struct {
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	ShownAt     time.Time        `json:"shown_at"`
}

var (
	NotificationPackageReady = Notification{
		Kind:        NotifySuccess,
		Title:       "Package Ready",
		Description: "Your package has been successfully created!",
	}
	NotificationPollFailed = Notification{
		Kind:        NotifyError,
		Title:       "Error",
		Description: "An error occurred while checking the package status.",
	}
	NotificationCreateFailed = Notification{
		Kind:        NotifyError,
		Title:       "Error",
		Description: "An error occurred while creating the package.",
	}
)

// UploadSnapshot is the observable state of one upload screen.
type UploadSnapshot struct {
	State        UploadState   `json:"state"`
	Loading      bool          `json:"loading"`
	PackageID    string        `json:"package_id,omitempty"`
	PackageName  string        `json:"package_name,omitempty"`
	Status       PackageStatus `json:"status"`
	StatusText   string        `json:"status_text,omitempty"`
	Polls        int           `json:"polls"`
	Files        []FileSummary `json:"files,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Error        string        `json:"error,omitempty"`
	SubmittedAt  time.Time     `json:"submitted_at,omitempty"`
	SettledAt    time.Time     `json:"settled_at,omitempty"`
}

type PackageEventType string

const (
	EventSubmitted     PackageEventType = "submitted"
	EventStatusChanged PackageEventType = "status_changed"
	EventReady         PackageEventType = "ready"
	EventFailed        PackageEventType = "failed"
)

// PackageEvent is published when an upload screen observes a lifecycle change.
type PackageEvent struct {
	Type        PackageEventType `json:"type"`
	PackageID   string           `json:"package_id"`
	PackageName string           `json:"package_name,omitempty"`
	Status      string           `json:"status,omitempty"`
	Message     string           `json:"message,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// UploadRecord is the portal's own record of a submission. It never carries
// package state beyond what the upload screen itself observed.
type UploadRecord struct {
	PackageID   string      `json:"package_id"`
	PackageName string      `json:"package_name"`
	FileCount   int         `json:"file_count"`
	Outcome     UploadState `json:"outcome"`
	Error       string      `json:"error,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
	SettledAt   *time.Time  `json:"settled_at,omitempty"`
}
