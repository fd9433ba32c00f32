package order

import (
	"strconv"
	"strings"
)

// DefaultGreeting opens the order message.
const DefaultGreeting = "Hola Makabra, quiero hacer un pedido:"

const (
	unpricedNote = "* Algunos productos son a consultar; no están incluidos en el total."
	closingNote  = "Gracias."
)

// MessageLine is one product line of the order message.
type MessageLine struct {
	Name      string
	Quantity  int
	UnitPrice int64
	Subtotal  int64
	Priced    bool
}

// Message holds everything the formatter prints.
type Message struct {
	Greeting    string
	OrderID     string
	CustomerID  string
	Lines       []MessageLine
	HasUnpriced bool
	Total       int64
	Address     string
}

// FormatMessage lays out the order message, one string per text line.
func FormatMessage(m Message) []string {
	out := make([]string, 0, len(m.Lines)+10)
	if g := strings.TrimSpace(m.Greeting); g != "" {
		out = append(out, g)
	}
	if id := strings.TrimSpace(m.OrderID); id != "" {
		out = append(out, "Pedido: "+id)
	}
	if c := strings.TrimSpace(m.CustomerID); c != "" {
		out = append(out, "Cliente: "+c)
	}

	out = append(out, "")
	for _, l := range m.Lines {
		out = append(out, formatLine(l))
	}

	out = append(out, "")
	if m.HasUnpriced {
		out = append(out, unpricedNote)
	}
	out = append(out, "Total: $"+FormatAmount(m.Total))
	if addr := strings.TrimSpace(m.Address); addr != "" {
		out = append(out, "Dirección: "+addr)
	}
	out = append(out, "", closingNote)
	return out
}

func formatLine(l MessageLine) string {
	head := strconv.Itoa(l.Quantity) + " x " + l.Name
	if !l.Priced {
		return head + " — Consultar precio"
	}
	return head + " — $" + FormatAmount(l.UnitPrice) + " c/u — Subtotal: $" + FormatAmount(l.Subtotal)
}
