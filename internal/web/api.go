package web

import "time"

// Request and response bodies of the JSON API.

type createSensorRequest struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Category string `json:"category"`
}

type createMeteredRequest struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Category string `json:"category"`
	Caller   string `json:"caller"`
	Payment  uint64 `json:"payment"`
}

type updateReadingRequest struct {
	Reading string `json:"reading"`
}

type sensorResponse struct {
	ID        string    `json:"id"`
	Location  string    `json:"location"`
	Category  string    `json:"category"`
	Reading   string    `json:"reading"`
	CreatedAt time.Time `json:"created_at"`
}

type feesResponse struct {
	CreationFee     uint64 `json:"creation_fee"`
	TransmissionFee uint64 `json:"transmission_fee"`
}

type setFeeRequest struct {
	Caller string `json:"caller"`
	Fee    uint64 `json:"fee"`
}

type poolWithdrawRequest struct {
	Caller      string `json:"caller"`
	Destination string `json:"destination"`
}

type transmissionRequest struct {
	Payment uint64 `json:"payment"`
}

type recordWithdrawRequest struct {
	Destination string `json:"destination"`
}

type errorResponse struct {
	Error string `json:"error"`
}
