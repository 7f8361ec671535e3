package domain

import "sort"

type CartLine struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// CheckoutRequest is the transient cart submitted by a client. Lines are
// applied in submitted order; duplicate product ids are not merged.
type CheckoutRequest struct {
	Items        []CartLine `json:"items"`
	ContactEmail string     `json:"contact_email,omitempty"`
}

type CheckoutResult struct {
	OrderID    uint64      `json:"order_id"`
	TotalCents int64       `json:"total_cents"`
	Items      []OrderItem `json:"items"`
}

// ProductIDs returns the distinct product ids of the cart in ascending order,
// which is the order rows must be locked in.
func (r CheckoutRequest) ProductIDs() []uint64 {
	seen := make(map[uint64]struct{}, len(r.Items))
	ids := make([]uint64, 0, len(r.Items))
	for _, line := range r.Items {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
