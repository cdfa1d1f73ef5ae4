package wallet

import "errors"

var (
	ErrInvalidInput        = errors.New("wallet: invalid input")
	ErrSelfTransfer        = errors.New("wallet: cannot transfer to self")
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")
	ErrMonthlyCapExceeded  = errors.New("wallet: teen monthly cap exceeded")
)
