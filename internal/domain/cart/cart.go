// Package cart models the client-side shopping cart as an immutable value.
//
// Every transition returns a new Cart and leaves the receiver untouched. The
// subtotal is an estimate for display; checkout always re-prices on the server.
package cart

import (
	"slices"

	"github.com/xenking/coffee-shop/internal/domain/catalog"
	"github.com/xenking/coffee-shop/internal/domain/order"
)

// Line is a menu item in the cart with its displayed unit price.
type Line struct {
	ItemID         string
	Name           string
	UnitPriceCents int64
	Quantity       int
}

// Cart is an ordered list of lines, at most one per item.
type Cart struct {
	Lines []Line
}

func (c Cart) index(itemID string) int {
	return slices.IndexFunc(c.Lines, func(l Line) bool { return l.ItemID == itemID })
}

func (c Cart) clone() Cart {
	return Cart{Lines: slices.Clone(c.Lines)}
}

// Add puts one unit of item into the cart, incrementing an existing line.
func (c Cart) Add(item catalog.Item) Cart {
	if i := c.index(item.ID); i >= 0 {
		return c.Inc(item.ID)
	}
	out := c.clone()
	out.Lines = append(out.Lines, Line{
		ItemID:         item.ID,
		Name:           item.Name,
		UnitPriceCents: item.PriceCents,
		Quantity:       1,
	})
	return out
}

// Inc adds one unit to the line for itemID. Unknown items are ignored.
func (c Cart) Inc(itemID string) Cart {
	i := c.index(itemID)
	if i < 0 {
		return c
	}
	out := c.clone()
	out.Lines[i].Quantity++
	return out
}

// Dec removes one unit from the line for itemID, dropping the line at zero.
func (c Cart) Dec(itemID string) Cart {
	i := c.index(itemID)
	if i < 0 {
		return c
	}
	return c.SetQuantity(itemID, c.Lines[i].Quantity-1)
}

// SetQuantity sets the quantity of an existing line. A non-positive quantity
// removes it.
func (c Cart) SetQuantity(itemID string, qty int) Cart {
	i := c.index(itemID)
	if i < 0 {
		return c
	}
	if qty <= 0 {
		return c.Remove(itemID)
	}
	out := c.clone()
	out.Lines[i].Quantity = qty
	return out
}

// Remove drops the line for itemID.
func (c Cart) Remove(itemID string) Cart {
	i := c.index(itemID)
	if i < 0 {
		return c
	}
	out := c.clone()
	out.Lines = slices.Delete(out.Lines, i, i+1)
	return out
}

// Clear returns an empty cart.
func (c Cart) Clear() Cart {
	return Cart{}
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool { return len(c.Lines) == 0 }

// Count is the total number of units.
func (c Cart) Count() int {
	var n int
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Subtotal is the display estimate in minor units.
func (c Cart) Subtotal() int64 {
	var sum int64
	for _, l := range c.Lines {
		sum += l.UnitPriceCents * int64(l.Quantity)
	}
	return sum
}

// Items converts the cart to checkout line requests.
func (c Cart) Items() []order.LineRequest {
	out := make([]order.LineRequest, len(c.Lines))
	for i, l := range c.Lines {
		out[i] = order.LineRequest{ItemID: l.ItemID, Quantity: l.Quantity}
	}
	return out
}
