package models

// Client is the projection of a CRM client row consumed by the snapshot warmer.
// Nullable columns are pointers so NULL stays distinguishable from empty values.
type Client struct {
	ID             int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Document       *string `gorm:"size:32;index" json:"document"`
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Status         *string `gorm:"size:32;index" json:"status"`
	NextFollowUpAt *int64  `json:"next_follow_up_at"`
}

// TableName pins the table to the CRM schema name.
func (Client) TableName() string {
	return "clients"
}
