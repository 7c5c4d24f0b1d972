package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/skip2/go-qrcode"

	"yprint/checkout"
	"yprint/config"
	"yprint/utils"
)

// ExpressCredential handles POST /api/checkout/{id}/express-credential. The
// browser payment sheet creates the payment method itself; this stores the
// resulting credential so the submission coordinator can hand it to the
// backend.
func (h *Handler) ExpressCredential(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	credentialID := r.FormValue("payment_method_id")
	if credentialID == "" {
		writeError(w, http.StatusBadRequest, "payment_method_id is required")
		return
	}

	method := checkout.PaymentMethod(r.FormValue("method"))
	if method == "" {
		method = checkout.MethodExpressApplePay
	}
	if !method.IsExpress() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("method %q is not an express method", method))
		return
	}
	if err := c.Methods.SelectMethod(method); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c.Session.SetExpressCredential(credentialID)
	utils.Info("express", "Express credential stored", "session_id", c.Session.ID, "method", method)
	writeSuccess(w, http.StatusOK, map[string]any{"active_method": method})
}

// ExpressQR handles GET /api/checkout/{id}/express-qr. It renders a QR code
// pointing a phone at the express pay-sheet hand-off page, so a desktop
// checkout can be finished with a mobile wallet.
func (h *Handler) ExpressQR(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	payURL := expressPayURL(c.Session.ID)

	qrCode, err := qrcode.New(payURL, qrcode.Medium)
	if err != nil {
		utils.Error("express", "Error generating QR code", "session_id", c.Session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error generating QR code")
		return
	}

	qrPNG, err := qrCode.PNG(256)
	if err != nil {
		utils.Error("express", "Error converting QR code to PNG", "session_id", c.Session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error generating QR code image")
		return
	}

	// Embed as base64 so the fragment can be swapped straight into the page
	qrBase64 := base64.StdEncoding.EncodeToString(qrPNG)

	w.Header().Set("Content-Type", "text/html")
	fragment := ExpressQRFragment(qrBase64, payURL)
	if err := fragment.Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// expressPayURL builds the pay-sheet hand-off URL for a session.
func expressPayURL(sessionID string) string {
	base := config.Config.ExpressPayURL
	if base == "" {
		host := config.Config.WebsiteName
		if host == "" {
			host = "localhost:" + config.Config.Port
		}
		base = "https://" + host + "/express-pay"
	}
	return base + "?session_id=" + url.QueryEscape(sessionID)
}
