package models

// Sequence is a named monotonically increasing counter
type Sequence struct {
	Name  string `gorm:"primaryKey;type:varchar(50)" json:"name"`
	Value int64  `json:"value"`
}
