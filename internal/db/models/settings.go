// Package models - settings.go defines platform settings consulted by the payment flow.
package models

import "time"

// PaymentSettingsKey is the settings row holding the platform payment addresses.
const PaymentSettingsKey = "payment"

// PaymentSettings holds the addresses talents pay their registration fee to.
// An empty address disables that payment method.
type PaymentSettings struct {
	ETHAddress string     `json:"eth_address"`
	BTCAddress string     `json:"btc_address"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	UpdatedBy  *string    `json:"updated_by,omitempty"`
}

// AddressFor returns the configured address for m and whether it is enabled.
func (s PaymentSettings) AddressFor(m PaymentMethod) (string, bool) {
	switch m {
	case PaymentETH:
		return s.ETHAddress, s.ETHAddress != ""
	case PaymentBTC:
		return s.BTCAddress, s.BTCAddress != ""
	}
	return "", false
}
