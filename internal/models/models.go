package models

import "time"

type Sensor struct {
	ID        string
	Location  string
	Category  string
	Reading   string
	CreatedAt time.Time
}

type Fees struct {
	Creation     uint64
	Transmission uint64
}
