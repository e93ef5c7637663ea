package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actors tag who performed a mutation or wrote a message.
const (
	ActorVendor   = "vendor"
	ActorCustomer = "customer"
)

// Review decisions for a single photo.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Address is the customer's mailing address.
type Address struct {
	Line1   string `bson:"line1" json:"line1"`
	Line2   string `bson:"line2,omitempty" json:"line2"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	Zip     string `bson:"zip" json:"zip"`
	Country string `bson:"country" json:"country"`
}

// TrackingNumbers holds the three carrier slots. Empty means not set.
type TrackingNumbers struct {
	KitOutbound     string `bson:"kitOutbound" json:"kitOutbound"`
	KitReturn       string `bson:"kitReturn" json:"kitReturn"`
	ProductOutbound string `bson:"productOutbound" json:"productOutbound"`
}

type PhotoReview struct {
	Status     string `bson:"status" json:"status"`
	Note       string `bson:"note" json:"note"`
	ReviewedAt string `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
}

// Photo entries are only ever appended; Review is the only mutable part.
type Photo struct {
	URL         string      `bson:"url" json:"url"`
	StoragePath string      `bson:"storagePath" json:"storagePath"`
	UploadedAt  string      `bson:"uploadedAt" json:"uploadedAt"`
	UploadedBy  string      `bson:"uploadedBy" json:"uploadedBy"`
	Width       int         `bson:"width,omitempty" json:"width,omitempty"`
	Height      int         `bson:"height,omitempty" json:"height,omitempty"`
	Review      PhotoReview `bson:"review" json:"review"`
}

type Message struct {
	Sender string `bson:"sender" json:"sender"`
	Text   string `bson:"text" json:"text"`
	At     string `bson:"at" json:"at"`
}

// Order is the vendor-owned full record.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrackToken    string             `bson:"trackToken" json:"trackToken"`
	CustomerName  string             `bson:"customerName" json:"customerName"`
	CustomerEmail string             `bson:"customerEmail,omitempty" json:"customerEmail,omitempty"`
	Status        string             `bson:"status" json:"status"`
	PrePaidStatus string             `bson:"prePaidStatus,omitempty" json:"prePaidStatus,omitempty"`
	Address       *Address           `bson:"address" json:"address"`
	Tracking      TrackingNumbers    `bson:"tracking" json:"tracking"`
	Paid          bool               `bson:"paid" json:"paid"`
	Photos        []Photo            `bson:"photos" json:"photos"`
	Messages      []Message          `bson:"messages" json:"messages"`
	Archived      bool               `bson:"archived" json:"archived"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
