package models

// ClubAcronymNone is the sentinel club excluded from selection lists.
const ClubAcronymNone = "none"

// StudentClub is an organizational affiliation; immutable reference data.
type StudentClub struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Acronym string `db:"acronym" json:"acronym"`
}
