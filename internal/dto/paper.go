package dto

import "github.com/sciclub-portal/papers-api/internal/models"

// CoAuthorInput is one entry of the ordered co-author list submitted with a
// paper. The whole list replaces the stored set on edit.
type CoAuthorInput struct {
	Name    string `json:"name" validate:"required"`
	Surname string `json:"surname" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// CreatePaperRequest contains the paper fields submitted alongside the
// multipart uploads. Co-authors arrive as a JSON array in the co_authors
// form field.
type CreatePaperRequest struct {
	Title       string          `form:"title" json:"title" validate:"required"`
	ClubID      string          `form:"club_id" json:"club_id" validate:"required"`
	Keywords    string          `form:"keywords" json:"keywords"`
	Description string          `form:"description" json:"description" validate:"required"`
	CoAuthors   []CoAuthorInput `form:"-" json:"co_authors" validate:"dive"`
}

// UpdatePaperRequest carries the edit payload. DeleteFileIDs lists
// attachment ids to remove inside the same transaction; Approved may only
// be toggled by staff.
type UpdatePaperRequest struct {
	Title         string          `form:"title" json:"title" validate:"required"`
	ClubID        string          `form:"club_id" json:"club_id" validate:"required"`
	Keywords      string          `form:"keywords" json:"keywords"`
	Description   string          `form:"description" json:"description" validate:"required"`
	Approved      *bool           `form:"approved" json:"approved"`
	CoAuthors     []CoAuthorInput `form:"-" json:"co_authors" validate:"dive"`
	DeleteFileIDs []string        `form:"-" json:"delete_file_ids"`
}

// AssignReviewersRequest binds up to two reviewer identities to a paper.
type AssignReviewersRequest struct {
	ReviewerIDs []string `json:"reviewer_ids" validate:"dive,required"`
}

// PaperNavigation carries previous/next ids resolved from a caller-supplied
// ordered id list.
type PaperNavigation struct {
	PrevID    string `json:"prev_id,omitempty"`
	PrevIndex int    `json:"prev_index,omitempty"`
	NextID    string `json:"next_id,omitempty"`
	NextIndex int    `json:"next_index,omitempty"`
}

// FileURLResponse returns a signed download link for an attachment.
type FileURLResponse struct {
	File        models.UploadedFile `json:"file"`
	DownloadURL string              `json:"download_url"`
}
