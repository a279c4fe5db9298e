package board

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Render draws the view as plain text for the console board.
func Render(v View) string {
	var b strings.Builder

	header := fmt.Sprintf("KITCHEN BOARD  %d active", len(v.Cards))
	switch {
	case !v.Loaded:
		header += "  [loading]"
	case v.Syncing:
		header += "  [syncing]"
	}
	b.WriteString(header)
	b.WriteByte('\n')

	if len(v.Cards) == 0 {
		if v.Loaded {
			b.WriteString("  no active orders\n")
		}
		return b.String()
	}

	for _, c := range v.Cards {
		fmt.Fprintf(&b, "%-6s %-11s %-8s %6s  %s\n",
			number(c.Order.OrderNumber),
			c.Order.Status,
			c.Urgency,
			clock(c.Age),
			label(c.Order.CustomerName, "-"),
		)
		for _, it := range c.Order.Items {
			line := fmt.Sprintf("  %dx %s", it.Quantity, label(it.Name, "?"))
			if len(it.Modifiers) > 0 {
				mods := make([]string, len(it.Modifiers))
				for i, m := range it.Modifiers {
					mods[i] = label(m, "")
				}
				line += " (" + strings.Join(mods, ", ") + ")"
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func number(n *int) string {
	if n == nil {
		return "#-"
	}
	return fmt.Sprintf("#%d", *n)
}

func clock(d time.Duration) string {
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// label normalizes user-entered text so composed and decomposed forms render
// the same.
func label(s, empty string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" {
		return empty
	}
	return s
}
