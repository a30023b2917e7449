package domain

import "time"

// ShippingInstruction controls when a production order may ship.
type ShippingInstruction string

const (
	ShipWhenComplete           ShippingInstruction = "ship_when_complete"
	ShipAsItemsAreAvailable    ShippingInstruction = "ship_as_items_are_available"
	ShipOnlyOnExplicitApproval ShippingInstruction = "ship_only_on_explicit_approval"
)

// Priority orders production work.
type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityExpedited Priority = "expedited"
)

// OrderDocument is the production-ready order staged to pending storage and
// later submitted downstream. It is built once by the processor, persisted
// verbatim, and never edited in place; the pair (Identity.PartnerCode,
// Identity.PartnerOrderID) is its idempotency key.
type OrderDocument struct {
	Identity        OrderIdentity        `json:"identity"`
	Customer        Customer             `json:"customer"`
	Recipients      []DocumentRecipient  `json:"recipients"`
	LineItems       []DocumentLineItem   `json:"line_items"`
	Shipping        OrderShipping        `json:"shipping"`
	Instructions    OrderInstructions    `json:"instructions"`
	PartnerMetadata PartnerOrderMetadata `json:"partner_metadata"`
}

// OrderIdentity names the order across partner and production systems.
type OrderIdentity struct {
	PartnerCode       string `json:"partner_code"`
	PartnerSubCode    string `json:"partner_sub_code,omitempty"`
	PartnerRegionCode string `json:"partner_region_code,omitempty"`
	PartnerOrderID    string `json:"partner_order_id"`
	TransactionID     string `json:"transaction_id"`
}

// Customer identifies the ordering customer.
type Customer struct {
	Code         string `json:"code"`
	LanguageCode string `json:"language_code,omitempty"`
}

// DocumentRecipient mirrors an upstream recipient in the production document.
type DocumentRecipient struct {
	ID           string             `json:"id"`
	LanguageCode string             `json:"language_code,omitempty"`
	Shipping     RecipientShipping  `json:"shipping"`
	OrderedItems []OrderedItemCount `json:"ordered_items"`
}

// DocumentLineItem is a production line item. Item holds the rendered
// per-SKU content produced by the template renderer.
type DocumentLineItem struct {
	LineItemID            string           `json:"line_item_id"`
	ProductCode           string           `json:"product_code"`
	ResourceID            string           `json:"resource_id,omitempty"`
	Description           string           `json:"description,omitempty"`
	Item                  string           `json:"item"`
	ServiceLevelAgreement string           `json:"service_level_agreement"`
	CountInSet            int              `json:"count_in_set"`
	TotalQuantity         int              `json:"total_quantity"`
	RecipientCount        int              `json:"recipient_count"`
	UnitPrice             PriceInformation `json:"unit_price"`
	DeclaredValue         PriceInformation `json:"declared_value"`
}

// OrderShipping carries the order-wide shipping instruction.
type OrderShipping struct {
	Instruction ShippingInstruction `json:"instruction"`
}

// OrderInstructions carries the order-wide production instructions.
type OrderInstructions struct {
	Priority Priority `json:"priority"`
}

// PartnerOrderMetadata records partner-side facts about the order.
type PartnerOrderMetadata struct {
	OrderDateUTC time.Time `json:"order_date_utc"`
}
