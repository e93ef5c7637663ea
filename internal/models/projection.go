package models

import "time"

// Projection is the customer-visible mirror of an order, keyed by its track
// token instead of the order id.
type Projection struct {
	Token         string          `bson:"_id" json:"token"`
	OrderID       string          `bson:"orderId,omitempty" json:"orderId,omitempty"`
	CustomerName  string          `bson:"customerName" json:"customerName"`
	CustomerEmail string          `bson:"customerEmail,omitempty" json:"customerEmail,omitempty"`
	Status        string          `bson:"status" json:"status"`
	PrePaidStatus string          `bson:"prePaidStatus,omitempty" json:"-"`
	Address       *Address        `bson:"address" json:"address"`
	Tracking      TrackingNumbers `bson:"tracking" json:"tracking"`
	Paid          bool            `bson:"paid" json:"paid"`
	Photos        []Photo         `bson:"photos" json:"photos"`
	Messages      []Message       `bson:"messages" json:"messages"`
	Archived      bool            `bson:"archived" json:"archived"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time       `bson:"updatedAt" json:"updatedAt"`

	LastUpdateBy           string     `bson:"lastUpdateBy" json:"lastUpdateBy"`
	LastCustomerActivityAt *time.Time `bson:"lastCustomerActivityAt" json:"lastCustomerActivityAt"`
	VendorLastSeenAt       *time.Time `bson:"vendorLastSeenAt" json:"vendorLastSeenAt"`
}

// ProjectionFor copies the fields a customer may see from o.
func ProjectionFor(o Order) Projection {
	return Projection{
		Token:         o.TrackToken,
		OrderID:       o.ID.Hex(),
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Status:        o.Status,
		Address:       o.Address,
		Tracking:      o.Tracking,
		Paid:          o.Paid,
		Photos:        append([]Photo{}, o.Photos...),
		Messages:      append([]Message{}, o.Messages...),
		Archived:      o.Archived,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
