package model

import (
	"encoding/json"
	"time"
)

// StoredSurvey is a survey definition kept in the database.
// Definition holds the JSON document as written so block order survives.
type StoredSurvey struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
