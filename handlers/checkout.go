// Package handlers exposes the checkout engine over HTTP. Responses use the
// same {success, data} envelope as the WordPress AJAX layer the frontend
// already speaks.
package handlers

import (
	"encoding/json"
	"net/http"

	"yprint/checkout"
	"yprint/payment"
	"yprint/utils"
	"yprint/wpajax"
)

// Handler holds the HTTP handler dependencies.
type Handler struct {
	manager *checkout.Manager
	ajax    *wpajax.Client
}

// New creates a new Handler.
func New(manager *checkout.Manager, ajax *wpajax.Client) *Handler {
	return &Handler{manager: manager, ajax: ajax}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.CreateSession)
	mux.HandleFunc("GET /api/checkout/{id}", h.GetSession)
	mux.HandleFunc("DELETE /api/checkout/{id}", h.EndSession)
	mux.HandleFunc("POST /api/checkout/{id}/address", h.SetAddress)
	mux.HandleFunc("POST /api/checkout/{id}/advance", h.Advance)
	mux.HandleFunc("POST /api/checkout/{id}/back", h.GoBack)
	mux.HandleFunc("POST /api/checkout/{id}/method", h.SelectMethod)
	mux.HandleFunc("POST /api/checkout/{id}/input", h.PaymentInput)
	mux.HandleFunc("POST /api/checkout/{id}/express-credential", h.ExpressCredential)
	mux.HandleFunc("POST /api/checkout/{id}/voucher", h.ApplyVoucher)
	mux.HandleFunc("POST /api/checkout/{id}/submit", h.Submit)
	mux.HandleFunc("GET /api/checkout/{id}/express-qr", h.ExpressQR)
	mux.HandleFunc("GET /api/checkout/{id}/summary", h.OrderSummary)
	mux.HandleFunc("POST /api/email-check", h.CheckEmail)
}

// CreateSession handles POST /api/checkout
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	c := h.manager.Create()
	writeSuccess(w, http.StatusCreated, c.Session.View())
}

// GetSession handles GET /api/checkout/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, c.Session.View())
}

// EndSession handles DELETE /api/checkout/{id}
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.manager.Remove(r.PathValue("id"))
	writeSuccess(w, http.StatusOK, nil)
}

// SetAddress handles POST /api/checkout/{id}/address
func (h *Handler) SetAddress(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	shipping := addressFromForm(r, "")
	var billing *checkout.Address
	sameAsShipping := r.FormValue("billing_same_as_shipping") != "0"
	if !sameAsShipping {
		b := addressFromForm(r, "billing_")
		billing = &b
	}
	savedSelected := r.FormValue("saved_address_selected") == "1"

	c.Session.SetAddresses(shipping, billing, sameAsShipping, savedSelected)
	if email := r.FormValue("email"); email != "" {
		c.Session.SetEmail(email)
	}
	writeSuccess(w, http.StatusOK, c.Session.View())
}

// Advance handles POST /api/checkout/{id}/advance
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	target := checkout.Step(r.FormValue("step"))
	result := c.Steps.AdvanceTo(r.Context(), target)
	if !result.OK {
		writeJSON(w, http.StatusOK, envelope{Success: false, Data: result})
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// GoBack handles POST /api/checkout/{id}/back
func (h *Handler) GoBack(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	target := checkout.Step(r.FormValue("step"))
	writeSuccess(w, http.StatusOK, c.Steps.GoBack(r.Context(), target))
}

// SelectMethod handles POST /api/checkout/{id}/method
func (h *Handler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	method := checkout.PaymentMethod(r.FormValue("method"))
	if err := c.Methods.SelectMethod(method); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"active_method": c.Methods.ActiveMethod(),
	})
}

// PaymentInput handles POST /api/checkout/{id}/input. It feeds raw payment
// input into the active method's hosted element, which fires its change
// listener exactly like keystrokes in the real widget.
func (h *Handler) PaymentInput(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	method := c.Methods.ActiveMethod()
	if err := c.Elements.EnsureReady(r.Context(), method); err != nil {
		writeError(w, http.StatusServiceUnavailable, "The payment form could not be loaded. Please reload the page.")
		return
	}
	input := payment.Input{
		CardNumber: r.FormValue("card_number"),
		ExpMonth:   r.FormValue("exp_month"),
		ExpYear:    r.FormValue("exp_year"),
		CVC:        r.FormValue("cvc"),
		IBAN:       r.FormValue("iban"),
	}
	if err := c.Elements.UpdateInput(method, input); err != nil {
		writeError(w, http.StatusConflict, "The payment form is not ready yet.")
		return
	}

	handle, _ := c.Elements.Handle(method)
	_, complete, validationError := handle.InputState()
	writeSuccess(w, http.StatusOK, map[string]any{
		"complete": complete,
		"error":    validationError,
	})
}

// ApplyVoucher handles POST /api/checkout/{id}/voucher
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	code := r.FormValue("voucher_code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "voucher_code is required")
		return
	}

	result, err := c.Steps.ApplyVoucher(r.Context(), code)
	if err != nil {
		utils.Error("handlers", "Voucher validation failed", "session_id", c.Session.ID, "error", err)
		writeError(w, http.StatusBadGateway, "The voucher could not be checked. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: result.Valid, Data: result})
}

// Submit handles POST /api/checkout/{id}/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	attempt := c.Submission.Submit(r.Context())
	writeJSON(w, http.StatusOK, envelope{
		Success: attempt.Status == checkout.AttemptSucceeded,
		Data:    attempt,
	})
}

// CheckEmail handles POST /api/email-check, proxying the account-email
// availability check to the WordPress backend.
func (h *Handler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	available, err := h.ajax.CheckEmailAvailability(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusBadGateway, "The email check is currently unavailable.")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"available": available})
}

// lookup resolves the session ID path segment, answering 404 on a miss.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*checkout.Checkout, bool) {
	id := r.PathValue("id")
	c, ok := h.manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, checkout.ErrSessionNotFound.Error())
		return nil, false
	}
	return c, true
}

func addressFromForm(r *http.Request, prefix string) checkout.Address {
	return checkout.Address{
		FirstName:   r.FormValue(prefix + "first_name"),
		LastName:    r.FormValue(prefix + "last_name"),
		Street:      r.FormValue(prefix + "street"),
		HouseNumber: r.FormValue(prefix + "housenumber"),
		ZIP:         r.FormValue(prefix + "zip"),
		City:        r.FormValue(prefix + "city"),
		Country:     r.FormValue(prefix + "country"),
		Phone:       r.FormValue(prefix + "phone"),
	}
}

// envelope mirrors the WordPress admin-ajax response shape.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		utils.Error("handlers", "Error encoding response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Data: map[string]string{"message": message}})
}
