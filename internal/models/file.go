package models

import "time"

// UploadedFileSource records how an attachment came to exist.
type UploadedFileSource string

const (
	// FileSourceUpload marks files submitted by the author.
	FileSourceUpload UploadedFileSource = "UPLOAD"
	// FileSourceStatement marks generated declaration documents.
	FileSourceStatement UploadedFileSource = "STATEMENT"
)

// UploadedFile is a stored attachment row belonging to one paper.
// The blob lives on disk at Path under the uploads base directory.
type UploadedFile struct {
	ID        string             `db:"id" json:"id"`
	PaperID   string             `db:"paper_id" json:"paper_id"`
	Filename  string             `db:"filename" json:"filename"`
	Path      string             `db:"path" json:"-"`
	MimeType  string             `db:"mime_type" json:"mime_type"`
	SizeBytes int64              `db:"size_bytes" json:"size_bytes"`
	Source    UploadedFileSource `db:"source" json:"source"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}
