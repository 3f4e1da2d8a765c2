package menufile

import (
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coffee-shop/internal/domain/catalog"
)

func TestDecodeItem(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    catalog.Item
		wantErr string
	}{
		{
			name:  "string price",
			input: `{"id":"espresso","name":"Espresso","price":"3.50","currency":"USD","category":"coffee"}`,
			want:  catalog.Item{ID: "espresso", Name: "Espresso", Category: "coffee", PriceCents: 350, Currency: "usd", Active: true},
		},
		{
			name:  "number price and defaults",
			input: `{"id":"latte","name":"Latte","price":4.95,"extra":{"a":1}}`,
			want:  catalog.Item{ID: "latte", Name: "Latte", PriceCents: 495, Currency: "usd", Active: true},
		},
		{
			name:  "inactive",
			input: `{"id":"mocha","name":"Mocha","price":"5","active":false,"image":"/m.png"}`,
			want:  catalog.Item{ID: "mocha", Name: "Mocha", ImageURL: "/m.png", PriceCents: 500, Currency: "usd"},
		},
		{name: "missing id", input: `{"name":"X","price":"1"}`, wantErr: "id is required"},
		{name: "missing price", input: `{"id":"x","name":"X"}`, wantErr: "price is required"},
		{name: "too precise", input: `{"id":"x","name":"X","price":"1.005"}`, wantErr: "decimal places"},
		{name: "bad price", input: `{"id":"x","name":"X","price":"cheap"}`, wantErr: "price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeItem(jx.DecodeStr(tt.input))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadArray(t *testing.T) {
	items, err := ReadArray(strings.NewReader(`[
		{"id":"espresso","name":"Espresso","price":"3.50"},
		{"id":"croissant","name":"Croissant","price":"4.25"}
	]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(425), items[1].PriceCents)

	_, err = ReadArray(strings.NewReader(`[{"id":"x"}]`))
	require.ErrorContains(t, err, "item 0")
}

func TestReadLines(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"espresso","name":"Espresso","price":"3.50"}`,
		``,
		`not json`,
		`{"id":"latte","name":"Latte","price":"4.95"}`,
	}, "\n")

	var (
		got     []string
		badLine []int
	)
	err := ReadLines(strings.NewReader(input),
		func(it catalog.Item) error {
			got = append(got, it.ID)
			return nil
		},
		func(line int, _ error) { badLine = append(badLine, line) },
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"espresso", "latte"}, got)
	assert.Equal(t, []int{3}, badLine)

	stop := errors.New("stop")
	err = ReadLines(strings.NewReader(input), func(catalog.Item) error { return stop }, nil)
	require.ErrorIs(t, err, stop)
}
