package order_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/makabra/mayorista-api/internal/order"
)

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1.000",
		1234567: "1.234.567",
		-4500:   "-4.500",

		math.MinInt64: "-9.223.372.036.854.775.808",
	}
	for in, want := range cases {
		require.Equal(t, want, order.FormatAmount(in))
	}
}

func TestFormatMessage(t *testing.T) {
	lines := order.FormatMessage(order.Message{
		Greeting:   order.DefaultGreeting,
		OrderID:    "MK-1",
		CustomerID: "C-12345",
		Lines: []order.MessageLine{
			{Name: "Yerba", Quantity: 2, UnitPrice: 1250, Subtotal: 2500, Priced: true},
			{Name: "Queso", Quantity: 1},
		},
		HasUnpriced: true,
		Total:       2500,
		Address:     "Av. Italia 123",
	})
	require.Equal(t, []string{
		"Hola Makabra, quiero hacer un pedido:",
		"Pedido: MK-1",
		"Cliente: C-12345",
		"",
		"2 x Yerba — $1.250 c/u — Subtotal: $2.500",
		"1 x Queso — Consultar precio",
		"",
		"* Algunos productos son a consultar; no están incluidos en el total.",
		"Total: $2.500",
		"Dirección: Av. Italia 123",
		"",
		"Gracias.",
	}, lines)
}

func TestFormatMessageOmitsOptionalParts(t *testing.T) {
	lines := order.FormatMessage(order.Message{
		OrderID: "MK-2",
		Lines:   []order.MessageLine{{Name: "Café", Quantity: 1, UnitPrice: 300, Subtotal: 300, Priced: true}},
		Total:   300,
	})
	require.Equal(t, []string{
		"Pedido: MK-2",
		"",
		"1 x Café — $300 c/u — Subtotal: $300",
		"",
		"Total: $300",
		"",
		"Gracias.",
	}, lines)
}

func TestWhatsAppLink(t *testing.T) {
	link := order.WhatsAppLink("+598 99 123 456", []string{"Hola a", "x"})
	require.Equal(t, "https://wa.me/59899123456?text=Hola%20a%0Ax", link)
}

func TestNewOrderID(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	require.Equal(t, "MK-LOYW3V28", order.NewOrderID(now, ""))
	require.Equal(t, "WEB-LOYW3V28", order.NewOrderID(now, " WEB "))
}
