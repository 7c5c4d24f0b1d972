package handlers

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"yprint/checkout"
)

// HTML fragments are built server-side and swapped into the checkout page.
// They return raw HTML on a single line to stay friendly to fragment swaps.

// ExpressQRFragment renders the express-pay QR code with its hand-off URL.
func ExpressQRFragment(qrBase64, payURL string) templ.Component {
	fragment := fmt.Sprintf(
		`<div class="express-qr"><h4>Pay with your phone</h4><img src="data:image/png;base64,%s" alt="Express payment QR code"/><p><small><a href="%s">%s</a></small></p></div>`,
		qrBase64,
		html.EscapeString(payURL),
		html.EscapeString(payURL),
	)
	return templ.Raw(fragment)
}

// OrderSummaryFragment renders the confirmation-step order summary.
func OrderSummaryFragment(view checkout.View) templ.Component {
	var sb strings.Builder
	sb.WriteString(`<div class="order-summary">`)

	if view.Order != nil {
		sb.WriteString(fmt.Sprintf(
			`<h4>Thank you for your order!</h4><p>Order <strong>%s</strong> (%s)</p>`,
			html.EscapeString(view.Order.OrderNumber),
			html.EscapeString(view.Order.Status),
		))
	} else {
		sb.WriteString(`<h4>Order summary</h4>`)
	}

	if view.Cart != nil {
		sb.WriteString(`<ul class="order-items">`)
		for _, item := range view.Cart.Items {
			sb.WriteString(fmt.Sprintf(
				`<li>%d&times; %s &mdash; %.2f&nbsp;&euro;</li>`,
				item.Quantity,
				html.EscapeString(item.Name),
				item.Price,
			))
		}
		sb.WriteString(`</ul>`)
		totals := view.Cart.Totals
		sb.WriteString(fmt.Sprintf(
			`<p class="order-totals">Subtotal %.2f&nbsp;&euro; | Shipping %.2f&nbsp;&euro; | Discount %.2f&nbsp;&euro; | VAT %.2f&nbsp;&euro; | <strong>Total %.2f&nbsp;&euro;</strong></p>`,
			totals.Subtotal, totals.Shipping, totals.Discount, totals.VAT, totals.Total,
		))
	}

	shipping := view.ShippingAddress
	sb.WriteString(fmt.Sprintf(
		`<p class="order-address">%s %s<br/>%s %s<br/>%s %s<br/>%s</p>`,
		html.EscapeString(shipping.FirstName),
		html.EscapeString(shipping.LastName),
		html.EscapeString(shipping.Street),
		html.EscapeString(shipping.HouseNumber),
		html.EscapeString(shipping.ZIP),
		html.EscapeString(shipping.City),
		html.EscapeString(shipping.Country),
	))

	sb.WriteString(`</div>`)
	return templ.Raw(sb.String())
}

// OrderSummary handles GET /api/checkout/{id}/summary
func (h *Handler) OrderSummary(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fragment := OrderSummaryFragment(c.Session.View())
	if err := fragment.Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
