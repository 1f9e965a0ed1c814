package cart

import (
	"encoding/json"
	"errors"
	"fmt"
)

// schemaVersion is written into every persisted payload. Readers accept
// any version up to and including it; fields they do not know are ignored.
const schemaVersion = 1

var ErrUnsupportedVersion = errors.New("persisted cart has an unsupported schema version")

type persistedCart struct {
	Version    int     `json:"version"`
	Items      []Line  `json:"items"`
	CustomerID *string `json:"customer_id,omitempty"`

	// State holds the payload of version 0 carts, which were wrapped as
	// {"state": {...}, "version": 0}.
	State *persistedCart `json:"state,omitempty"`
}

type restored struct {
	Items      []Line
	CustomerID string
}

func encode(lines []Line, customerID string) ([]byte, error) {
	p := persistedCart{
		Version: schemaVersion,
		Items:   lines,
	}
	if p.Items == nil {
		p.Items = []Line{}
	}
	if customerID != "" {
		p.CustomerID = &customerID
	}
	return json.Marshal(p)
}

func decode(data []byte) (restored, error) {
	var p persistedCart
	if err := json.Unmarshal(data, &p); err != nil {
		return restored{}, fmt.Errorf("unmarshal persisted cart: %w", err)
	}

	if p.Version > schemaVersion {
		return restored{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.Version)
	}
	if p.Version == 0 && p.State != nil {
		p = *p.State
	}

	var out restored
	if p.CustomerID != nil {
		out.CustomerID = *p.CustomerID
	}

	seen := make(map[string]int, len(p.Items))
	for _, l := range p.Items {
		if l.ProductID == "" && l.Product.ID != "" {
			l.ProductID = l.Product.ID
		}
		if l.ProductID == "" || l.Quantity < 1 || l.UnitPrice.IsNegative() {
			continue
		}
		if validateDiscount(l.Quantity, l.UnitPrice, l.DiscountAmount) != nil {
			continue
		}
		if i, ok := seen[l.ProductID]; ok {
			out.Items[i].Quantity += l.Quantity
			out.Items[i].recompute()
			continue
		}
		l.recompute()
		seen[l.ProductID] = len(out.Items)
		out.Items = append(out.Items, l)
	}

	return out, nil
}
