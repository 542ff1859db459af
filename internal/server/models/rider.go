// Package models defines server-side data models persisted in the database
// and the message shapes consumed from the broker.
package models

import "time"

// Rider is a courier record provisioned from the rider-info stream.
// ExternalUserID is the join key with the identity service and is immutable
// once set; TaxID and LicenseNumber are unique across riders.
type Rider struct {
	ID             string
	ExternalUserID string
	DisplayName    string
	TaxID          string
	DateOfBirth    time.Time
	LicenseNumber  string
	LicenseType    string
	CreatedAt      time.Time
}

// RiderEvent is the body of a rider-info message. It maps 1:1 onto a rider
// create-or-update.
type RiderEvent struct {
	ExternalUserID string `json:"userId"`
	DisplayName    string `json:"name"`
	TaxID          string `json:"taxId"`
	DateOfBirth    string `json:"dateOfBirth"`
	LicenseNumber  string `json:"licenseNumber"`
	LicenseType    string `json:"licenseType"`
}
