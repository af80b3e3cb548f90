package models

// GradeTag identifies one category of the review rubric.
type GradeTag string

const (
	GradeTagCorrespondence GradeTag = "correspondence"
	GradeTagOriginality    GradeTag = "originality"
	GradeTagMerits         GradeTag = "merits"
	GradeTagPresentation   GradeTag = "presentation"
	GradeTagFinal          GradeTag = "final_grade"
)

// GradeTags lists every rubric category in display order.
var GradeTags = []GradeTag{
	GradeTagCorrespondence,
	GradeTagOriginality,
	GradeTagMerits,
	GradeTagPresentation,
	GradeTagFinal,
}

// Grade is one categorical score value; immutable reference data.
type Grade struct {
	ID   string   `db:"id" json:"id"`
	Tag  GradeTag `db:"tag" json:"tag"`
	Name string   `db:"name" json:"name"`
}
