package model

import (
	"time"
)

type Customer struct {
	CustomerID  int64     `gorm:"primaryKey;autoIncrement:false" json:"customer_id"`
	Name        string    `gorm:"type:varchar(128);not null" json:"name"`
	Email       string    `gorm:"type:varchar(128);not null" json:"email"`
	Phone       string    `gorm:"type:varchar(32)" json:"phone"`
	DateOfBirth time.Time `json:"date_of_birth"`
	PAN         string    `gorm:"type:varchar(16)" json:"pan"`
	Aadhar      string    `gorm:"type:varchar(16)" json:"aadhar"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Customer) TableName() string {
	return "customer"
}

// AgeAt returns the customer's age in whole years at t.
func (c *Customer) AgeAt(t time.Time) int {
	age := t.Year() - c.DateOfBirth.Year()
	if t.Month() < c.DateOfBirth.Month() ||
		(t.Month() == c.DateOfBirth.Month() && t.Day() < c.DateOfBirth.Day()) {
		age--
	}
	return age
}

// AccountRequest is a pending application for a new customer and account,
// waiting for an admin decision.
type AccountRequest struct {
	RequestID      int64     `gorm:"primaryKey;autoIncrement:false" json:"request_id"`
	Name           string    `gorm:"type:varchar(128);not null" json:"name"`
	Email          string    `gorm:"type:varchar(128);not null" json:"email"`
	Phone          string    `gorm:"type:varchar(32)" json:"phone"`
	DateOfBirth    time.Time `json:"date_of_birth"`
	PAN            string    `gorm:"type:varchar(16)" json:"pan"`
	Aadhar         string    `gorm:"type:varchar(16)" json:"aadhar"`
	AccountType    string    `gorm:"type:varchar(16);not null" json:"account_type"`
	OpeningBalance int64     `gorm:"not null" json:"opening_balance"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AccountRequest) TableName() string {
	return "account_request"
}
