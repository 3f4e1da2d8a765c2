// Package menufile decodes menu items from the JSON documents used by the
// seed and ingest tools.
//
// An item looks like
//
//	{"id":"espresso","name":"Espresso","price":"3.50","currency":"usd"}
//
// where price is a major-unit decimal, given as a string or a number.
// Optional fields are description, category, image and active (default true).
package menufile

import (
	"bufio"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coffee-shop/internal/domain/catalog"
	"github.com/xenking/coffee-shop/internal/domain/order"
)

const defaultCurrency = "usd"

// DecodeItem reads one item object from d.
func DecodeItem(d *jx.Decoder) (catalog.Item, error) {
	item := catalog.Item{Active: true}
	var (
		price    decimal.Decimal
		hasPrice bool
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			item.ID, err = d.Str()
		case "name":
			item.Name, err = d.Str()
		case "description":
			item.Description, err = d.Str()
		case "category":
			item.Category, err = d.Str()
		case "image":
			item.ImageURL, err = d.Str()
		case "currency":
			item.Currency, err = d.Str()
		case "active":
			item.Active, err = d.Bool()
		case "price":
			price, err = decodeDecimal(d)
			hasPrice = err == nil
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	}); err != nil {
		return catalog.Item{}, err
	}

	item.ID = strings.TrimSpace(item.ID)
	switch {
	case item.ID == "":
		return catalog.Item{}, errors.New("item id is required")
	case item.Name == "":
		return catalog.Item{}, errors.Errorf("item %s: name is required", item.ID)
	case !hasPrice:
		return catalog.Item{}, errors.Errorf("item %s: price is required", item.ID)
	}
	item.Currency = strings.ToLower(item.Currency)
	if item.Currency == "" {
		item.Currency = defaultCurrency
	}

	cents, err := order.Minor(price, item.Currency)
	if err != nil {
		return catalog.Item{}, errors.Wrapf(err, "item %s", item.ID)
	}
	item.PriceCents = cents
	return item, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

// ReadArray decodes a JSON array of items.
func ReadArray(r io.Reader) ([]catalog.Item, error) {
	var items []catalog.Item
	err := jx.Decode(r, 4096).Arr(func(d *jx.Decoder) error {
		item, err := DecodeItem(d)
		if err != nil {
			return errors.Wrapf(err, "item %d", len(items))
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode menu")
	}
	return items, nil
}

// ReadLines decodes one item per line and calls fn for each. Blank lines are
// skipped. Decoding stops at the first error from the reader or fn; a
// malformed line is passed to bad and skipped.
func ReadLines(r io.Reader, fn func(catalog.Item) error, bad func(line int, err error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		item, err := DecodeItem(jx.DecodeBytes(line))
		if err != nil {
			if bad != nil {
				bad(n, err)
			}
			continue
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan lines")
	}
	return nil
}
