package models

import "time"

// Admin is an allow-list entry. Presence of the account id grants vendor
// capability.
type Admin struct {
	AccountID string    `bson:"_id" json:"accountId"`
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
