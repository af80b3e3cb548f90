package models

import "time"

// Paper is a submitted work record owned by an author.
// At most two reviewers may be assigned to a paper.
type Paper struct {
	ID              string    `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	ClubID          string    `db:"club_id" json:"club_id"`
	Keywords        string    `db:"keywords" json:"keywords"`
	Description     string    `db:"description" json:"description"`
	Approved        bool      `db:"approved" json:"approved"`
	AuthorID        string    `db:"author_id" json:"author_id"`
	StatementFileID *string   `db:"statement_file_id" json:"statement_file_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	// Joined display columns populated by list queries.
	ClubName   string `db:"club_name" json:"club_name,omitempty"`
	AuthorName string `db:"author_name" json:"author_name,omitempty"`

	// Loaded relations.
	CoAuthors   []CoAuthor     `db:"-" json:"co_authors,omitempty"`
	Files       []UploadedFile `db:"-" json:"files,omitempty"`
	ReviewerIDs []string       `db:"-" json:"reviewer_ids,omitempty"`
}

// MaxReviewersPerPaper caps reviewer assignment.
const MaxReviewersPerPaper = 2

// CoAuthor is a non-account-holding collaborator attached to exactly one paper.
// The whole set is replaced on every edit.
type CoAuthor struct {
	ID      string `db:"id" json:"id"`
	PaperID string `db:"paper_id" json:"paper_id"`
	Name    string `db:"name" json:"name"`
	Surname string `db:"surname" json:"surname"`
	Email   string `db:"email" json:"email,omitempty"`
}

// PaperFilter captures listing criteria. Role scoping is expressed by
// setting AuthorID (own papers) or ReviewerID (assigned papers).
type PaperFilter struct {
	AuthorID   string
	ReviewerID string
	ClubID     string
	Approved   *bool
	Search     string
	Page       int
	PageSize   int
}
