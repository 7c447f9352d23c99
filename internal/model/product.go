package model

import (
	"time"
)

const (
	LoanTypePersonal  = "Personal"
	LoanTypeHome      = "Home"
	LoanTypeCar       = "Car"
	LoanTypeEducation = "Education"
)

const (
	FDTypeRegular       = "Regular"
	FDTypeTaxSaving     = "TaxSaving"
	FDTypeSeniorCitizen = "SeniorCitizen"
)

// LoanRequest carries the repayment figures computed when it was submitted.
type LoanRequest struct {
	RequestID          int64     `gorm:"primaryKey;autoIncrement:false" json:"request_id"`
	CustomerID         int64     `gorm:"index;not null" json:"customer_id"`
	LoanType           string    `gorm:"type:varchar(16);not null" json:"loan_type"`
	Principal          int64     `gorm:"not null" json:"principal"`
	Years              int       `gorm:"not null" json:"years"`
	InterestRate       string    `gorm:"type:varchar(16);not null" json:"interest_rate"`
	MonthlyInstallment int64     `gorm:"not null" json:"monthly_installment"`
	TotalInterest      int64     `gorm:"not null" json:"total_interest"`
	TotalPayable       int64     `gorm:"not null" json:"total_payable"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LoanRequest) TableName() string {
	return "loan_request"
}

type Loan struct {
	LoanID             int64     `gorm:"primaryKey;autoIncrement:false" json:"loan_id"`
	CustomerID         int64     `gorm:"index;not null" json:"customer_id"`
	LoanType           string    `gorm:"type:varchar(16);not null" json:"loan_type"`
	Principal          int64     `gorm:"not null" json:"principal"`
	Years              int       `gorm:"not null" json:"years"`
	InterestRate       string    `gorm:"type:varchar(16);not null" json:"interest_rate"`
	MonthlyInstallment int64     `gorm:"not null" json:"monthly_installment"`
	TotalInterest      int64     `gorm:"not null" json:"total_interest"`
	TotalPayable       int64     `gorm:"not null" json:"total_payable"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Loan) TableName() string {
	return "loan"
}

type FDRequest struct {
	RequestID    int64     `gorm:"primaryKey;autoIncrement:false" json:"request_id"`
	CustomerID   int64     `gorm:"index;not null" json:"customer_id"`
	FDType       string    `gorm:"type:varchar(16);not null" json:"fd_type"`
	Principal    int64     `gorm:"not null" json:"principal"`
	Years        int       `gorm:"not null" json:"years"`
	InterestRate string    `gorm:"type:varchar(16);not null" json:"interest_rate"`
	Returns      int64     `gorm:"not null" json:"returns"`
	TotalPayable int64     `gorm:"not null" json:"total_payable"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (FDRequest) TableName() string {
	return "fd_request"
}

type FixedDeposit struct {
	FDID         int64     `gorm:"primaryKey;autoIncrement:false" json:"fd_id"`
	CustomerID   int64     `gorm:"index;not null" json:"customer_id"`
	FDType       string    `gorm:"type:varchar(16);not null" json:"fd_type"`
	Principal    int64     `gorm:"not null" json:"principal"`
	Years        int       `gorm:"not null" json:"years"`
	InterestRate string    `gorm:"type:varchar(16);not null" json:"interest_rate"`
	Returns      int64     `gorm:"not null" json:"returns"`
	TotalPayable int64     `gorm:"not null" json:"total_payable"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (FixedDeposit) TableName() string {
	return "fixed_deposit"
}
