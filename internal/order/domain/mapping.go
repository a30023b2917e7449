package domain

// ToDocument reshapes upstream order details into a production order
// document. Only structural copying happens here; the processor fills in the
// partner identity, shipping defaults, rendered line item content and
// metadata afterwards.
func (d OrderDetails) ToDocument() OrderDocument {
	doc := OrderDocument{
		Identity: OrderIdentity{PartnerOrderID: d.OrderID},
		Customer: Customer{Code: d.UserID},
	}

	if len(d.Recipients) > 0 {
		doc.Customer.LanguageCode = d.Recipients[0].LanguageCode
	}

	doc.Recipients = make([]DocumentRecipient, 0, len(d.Recipients))
	for _, recipient := range d.Recipients {
		items := make([]OrderedItemCount, 0, len(recipient.OrderedItems))
		for _, item := range recipient.OrderedItems {
			items = append(items, OrderedItemCount{LineItemID: item.LineItemID, Quantity: item.Quantity})
		}
		doc.Recipients = append(doc.Recipients, DocumentRecipient{
			ID:           recipient.ID,
			LanguageCode: recipient.LanguageCode,
			Shipping:     recipient.Shipping,
			OrderedItems: items,
		})
	}

	doc.LineItems = make([]DocumentLineItem, 0, len(d.LineItems))
	for _, item := range d.LineItems {
		doc.LineItems = append(doc.LineItems, DocumentLineItem{
			LineItemID:            item.LineItemID,
			ProductCode:           item.ProductCode,
			ResourceID:            item.ResourceID,
			Description:           item.Description,
			ServiceLevelAgreement: item.ServiceLevelAgreement,
			CountInSet:            item.CountInSet,
			UnitPrice:             item.UnitPrice,
			DeclaredValue: PriceInformation{
				Amount:       item.DeclaredValue.Amount,
				CurrencyCode: firstNonEmpty(item.DeclaredValue.CurrencyCode, item.UnitPrice.CurrencyCode),
			},
		})
	}

	return doc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
