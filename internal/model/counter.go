package model

const (
	CounterCustomer       = "customer"
	CounterAccount        = "account"
	CounterLoan           = "loan"
	CounterFD             = "fd"
	CounterAccountRequest = "account_request"
	CounterLoanRequest    = "loan_request"
	CounterFDRequest      = "fd_request"
)

// Counter is a named monotonic sequence. Only plain reads and
// value-conditional writes are issued against it.
type Counter struct {
	Name  string `gorm:"type:varchar(32);primaryKey" json:"name"`
	Value int64  `gorm:"not null;default:0" json:"value"`
}

func (Counter) TableName() string {
	return "counter"
}
