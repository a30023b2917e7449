// Package domain defines the order value objects moved through the
// fulfillment pipelines: the upstream commerce order details and the
// production order document staged for submission.
package domain

import "time"

// OrderDetails is the order as reported by the upstream commerce system.
type OrderDetails struct {
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	OrderDate  *time.Time  `json:"order_date,omitempty"`
	Recipients []Recipient `json:"recipients"`
	LineItems  []LineItem  `json:"line_items"`
}

// Recipient is a destination for some subset of the ordered items.
type Recipient struct {
	ID           string             `json:"id"`
	LanguageCode string             `json:"language_code"`
	Shipping     RecipientShipping  `json:"shipping"`
	OrderedItems []OrderedItemCount `json:"ordered_items"`
}

// OrderedItemCount ties a recipient to a line item with a quantity.
type OrderedItemCount struct {
	LineItemID string `json:"line_item_id"`
	Quantity   int    `json:"quantity"`
}

// RecipientShipping carries the delivery details for one recipient.
type RecipientShipping struct {
	Address                   Address    `json:"address"`
	RequestedProviderCode     string     `json:"requested_provider_code,omitempty"`
	RequestedServiceLevelCode string     `json:"requested_service_level_code,omitempty"`
	RatingAccountCode         string     `json:"rating_account_code,omitempty"`
	RequestedSaturdayDelivery bool       `json:"requested_saturday_delivery"`
	SignatureRequired         bool       `json:"signature_required"`
	ExpectedShipDateUTC       *time.Time `json:"expected_ship_date_utc,omitempty"`
}

// Address is a postal address shared by both order representations.
type Address struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Company         string `json:"company,omitempty"`
	CareOf          string `json:"care_of,omitempty"`
	Line1           string `json:"line1"`
	Line2           string `json:"line2,omitempty"`
	City            string `json:"city"`
	StateOrProvince string `json:"state_or_province"`
	PostalCode      string `json:"postal_code"`
	CountryCode     string `json:"country_code"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
}

// LineItem is one orderable item within the upstream order.
type LineItem struct {
	LineItemID            string           `json:"line_item_id"`
	ProductCode           string           `json:"product_code"`
	ResourceID            string           `json:"resource_id,omitempty"`
	Description           string           `json:"description,omitempty"`
	TotalSheetCount       int              `json:"total_sheet_count"`
	AdditionalSheetCount  int              `json:"additional_sheet_count"`
	CountInSet            int              `json:"count_in_set"`
	ServiceLevelAgreement string           `json:"service_level_agreement,omitempty"`
	UnitPrice             PriceInformation `json:"unit_price"`
	DeclaredValue         PriceInformation `json:"declared_value"`
}

// PriceInformation is an amount with its currency.
type PriceInformation struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currency_code"`
}

// TotalOrderedQuantity sums the quantity of the given line item across every
// recipient of the order.
func (d OrderDetails) TotalOrderedQuantity(lineItemID string) int {
	total := 0
	for _, recipient := range d.Recipients {
		for _, item := range recipient.OrderedItems {
			if item.LineItemID == lineItemID {
				total += item.Quantity
			}
		}
	}
	return total
}

// RecipientCount counts the distinct recipients that ordered the given line
// item.
func (d OrderDetails) RecipientCount(lineItemID string) int {
	count := 0
	for _, recipient := range d.Recipients {
		for _, item := range recipient.OrderedItems {
			if item.LineItemID == lineItemID {
				count++
				break
			}
		}
	}
	return count
}
