package service

import "errors"

var (
	ErrAlreadyExists       = errors.New("sensor already registered")
	ErrNotFound            = errors.New("sensor not found")
	ErrInsufficientPayment = errors.New("payment below required fee")
	ErrNoFunds             = errors.New("no funds available for withdrawal")
	ErrUnauthorized        = errors.New("caller not authorized")
	ErrEmptyID             = errors.New("sensor id is required")
	ErrEmptyCaller         = errors.New("caller is required")
	ErrEmptyDestination    = errors.New("destination is required")
)
