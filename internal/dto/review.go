package dto

// ReviewRequest carries the five rubric grade ids plus the review body.
// Each id must reference a grade of the matching tag.
type ReviewRequest struct {
	CorrespondenceID string `json:"correspondence_id" validate:"required"`
	OriginalityID    string `json:"originality_id" validate:"required"`
	MeritsID         string `json:"merits_id" validate:"required"`
	PresentationID   string `json:"presentation_id" validate:"required"`
	FinalGradeID     string `json:"final_grade_id" validate:"required"`
	Text             string `json:"text" validate:"required"`
}

// ReviewLookupResult reports the outcome of the lookup-or-create path:
// either an existing review id, or permission for the acting reviewer to
// create one.
type ReviewLookupResult struct {
	ReviewID  string `json:"review_id,omitempty"`
	CanCreate bool   `json:"can_create"`
}
