package service

import "errors"

var (
	errUnknownStatus = errors.New("unknown expense status")
	errEmptyReceipt  = errors.New("receipt image is empty")
)
