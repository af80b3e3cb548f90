package models

import "time"

// Review holds one reviewer's grades and commentary for a paper.
// A reviewer may review a given paper at most once, enforced by a
// unique index on (paper_id, author_id).
type Review struct {
	ID             string    `db:"id" json:"id"`
	PaperID        string    `db:"paper_id" json:"paper_id"`
	AuthorID       string    `db:"author_id" json:"author_id"`
	Correspondence string    `db:"correspondence_id" json:"correspondence_id"`
	Originality    string    `db:"originality_id" json:"originality_id"`
	Merits         string    `db:"merits_id" json:"merits_id"`
	Presentation   string    `db:"presentation_id" json:"presentation_id"`
	FinalGrade     string    `db:"final_grade_id" json:"final_grade_id"`
	Text           string    `db:"text" json:"text"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	// Joined display columns.
	PaperTitle string `db:"paper_title" json:"paper_title,omitempty"`
	AuthorName string `db:"author_name" json:"author_name,omitempty"`
}
