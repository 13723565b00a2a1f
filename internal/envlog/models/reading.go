package models

import (
	"time"

	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
)

// Reading is one sensor measurement for a product. Readings are append-only
// and are recorded even when the product is already violated or recalled;
// the log is evidence, not state.
//
// Temperature is tenths of a degree Celsius, matching the product's declared
// range.
type Reading struct {
	ProductID   id.ProductID `json:"product_id"`
	Temperature int          `json:"temperature"`
	// Humidity is relative humidity in percent. Optional; not every
	// sensor reports it and it plays no part in violation detection.
	Humidity *int        `json:"humidity,omitempty"`
	Reporter id.Identity `json:"reporter"`
	// Device describes the reporting client, when the transport captured one.
	Device   string    `json:"device,omitempty"`
	Location string    `json:"location,omitempty"`
	At       time.Time `json:"at"`
}

// NewReading validates and stamps a reading.
func NewReading(productID id.ProductID, temperature int, humidity *int,
	reporter id.Identity, device, location string, at time.Time) (Reading, error) {

	if productID.IsNil() {
		return Reading{}, dErrors.New(dErrors.CodeValidation, "product id cannot be empty")
	}
	if reporter.IsNil() {
		return Reading{}, dErrors.New(dErrors.CodeValidation, "reporter identity cannot be empty")
	}
	if humidity != nil && (*humidity < 0 || *humidity > 100) {
		return Reading{}, dErrors.Newf(dErrors.CodeValidation, "humidity %d%% is outside [0, 100]", *humidity)
	}
	return Reading{
		ProductID:   productID,
		Temperature: temperature,
		Humidity:    humidity,
		Reporter:    reporter,
		Device:      device,
		Location:    location,
		At:          at,
	}, nil
}
