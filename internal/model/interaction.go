package model

// Interaction is one ledger record: the earliest and latest observed user
// activity on a calendar day, both as local "HH:MM".
type Interaction struct {
	Date  string `json:"date"`
	First string `json:"first_interaction"`
	Last  string `json:"last_interaction"`
}
