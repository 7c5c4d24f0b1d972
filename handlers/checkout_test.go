package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yprint/checkout"
	"yprint/payment"
	"yprint/wpajax"
)

// wpBackend fakes the WordPress admin-ajax endpoint.
type wpBackend struct {
	mu            sync.Mutex
	finalizeCalls int
	lastForm      url.Values
	failFinalize  bool
}

func (b *wpBackend) finalizations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finalizeCalls
}

func (b *wpBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		b.mu.Lock()
		b.lastForm = r.Form
		action := r.FormValue("action")
		if action == wpajax.ActionProcessFinalCheckout || action == wpajax.ActionProcessPaymentMethod {
			b.finalizeCalls++
		}
		failFinalize := b.failFinalize
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch action {
		case wpajax.ActionGetCartData:
			fmt.Fprint(w, `{"success":true,"data":{
				"items":[{"id":"42","name":"Classic Tee","quantity":1,"price":39.99}],
				"totals":{"subtotal":39.99,"shipping":4.90,"total":44.89}
			}}`)
		case wpajax.ActionProcessFinalCheckout, wpajax.ActionProcessPaymentMethod:
			if failFinalize {
				fmt.Fprint(w, `{"success":false,"data":{"message":"Card declined"}}`)
				return
			}
			fmt.Fprint(w, `{"success":true,"data":{
				"message":"Order completed","next_step":"confirmation",
				"order_data":{"order_id":4711,"order_number":"YP-4711","status":"processing","total":44.89}
			}}`)
		case wpajax.ActionValidateVoucher:
			fmt.Fprint(w, `{"success":true,"data":{"valid":true,"code":"WELCOME10","discount":4.0}}`)
		case wpajax.ActionApplyCoupon:
			fmt.Fprint(w, `{"success":true,"data":{"totals":{"subtotal":39.99,"discount":4.0,"total":40.89}}}`)
		case wpajax.ActionCheckEmailAvailability:
			fmt.Fprint(w, `{"success":true,"data":{"available":true}}`)
		case wpajax.ActionRefreshCheckoutContext:
			fmt.Fprint(w, `{"success":true,"data":{}}`)
		default:
			fmt.Fprint(w, `{"success":false,"data":{"message":"unknown action"}}`)
		}
	})
}

func newTestEnv(t *testing.T) (*http.ServeMux, *wpBackend) {
	t.Helper()
	backend := &wpBackend{}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	ajax := wpajax.NewClient(srv.URL, "test-nonce")
	manager := checkout.NewManager(payment.NewMemorySDK(), ajax)

	mux := http.NewServeMux()
	New(manager, ajax).RegisterRoutes(mux)
	return mux, backend
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func doForm(t *testing.T, mux *http.ServeMux, method, path string, form url.Values) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var env testEnvelope
	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func createSession(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	rec, env := doForm(t, mux, http.MethodPost, "/api/checkout", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	var view struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.NotEmpty(t, view.SessionID)
	return view.SessionID
}

func addressForm() url.Values {
	return url.Values{
		"first_name":  {"Anna"},
		"last_name":   {"Muster"},
		"street":      {"Teststr."},
		"housenumber": {"5"},
		"zip":         {"10115"},
		"city":        {"Berlin"},
		"country":     {"DE"},
		"email":       {"anna@example.com"},
	}
}

func cardForm() url.Values {
	return url.Values{
		"card_number": {"4242424242424242"},
		"exp_month":   {"12"},
		"exp_year":    {"2032"},
		"cvc":         {"123"},
	}
}

func TestFullCardCheckoutFlow(t *testing.T) {
	mux, backend := newTestEnv(t)
	id := createSession(t, mux)
	base := "/api/checkout/" + id

	rec, env := doForm(t, mux, http.MethodPost, base+"/address", addressForm())
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	rec, env = doForm(t, mux, http.MethodPost, base+"/advance", url.Values{"step": {"payment"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	rec, env = doForm(t, mux, http.MethodPost, base+"/input", cardForm())
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	var inputState struct {
		Complete bool   `json:"complete"`
		Error    string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inputState))
	assert.True(t, inputState.Complete)
	assert.Empty(t, inputState.Error)

	rec, env = doForm(t, mux, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	var attempt struct {
		Status string `json:"status"`
		Order  struct {
			OrderNumber string `json:"order_number"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &attempt))
	assert.Equal(t, "succeeded", attempt.Status)
	assert.Equal(t, "YP-4711", attempt.Order.OrderNumber)
	assert.Equal(t, 1, backend.finalizations())

	_, env = doForm(t, mux, http.MethodGet, base, nil)
	var view struct {
		Step string `json:"step"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "confirmation", view.Step)
}

func TestAdvanceWithIncompleteAddress(t *testing.T) {
	mux, _ := newTestEnv(t)
	id := createSession(t, mux)
	base := "/api/checkout/" + id

	form := addressForm()
	form.Set("zip", "")
	_, env := doForm(t, mux, http.MethodPost, base+"/address", form)
	require.True(t, env.Success)

	rec, env := doForm(t, mux, http.MethodPost, base+"/advance", url.Values{"step": {"payment"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, env.Success)

	var result struct {
		InvalidField string `json:"invalid_field"`
		Step         string `json:"step"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "zip", result.InvalidField)
	assert.Equal(t, "address", result.Step)
}

func TestSubmitWithIncompleteCardInput(t *testing.T) {
	mux, backend := newTestEnv(t)
	id := createSession(t, mux)
	base := "/api/checkout/" + id

	doForm(t, mux, http.MethodPost, base+"/address", addressForm())
	doForm(t, mux, http.MethodPost, base+"/advance", url.Values{"step": {"payment"}})

	form := cardForm()
	form.Set("card_number", "4242")
	doForm(t, mux, http.MethodPost, base+"/input", form)

	_, env := doForm(t, mux, http.MethodPost, base+"/submit", nil)
	require.False(t, env.Success)

	var attempt struct {
		Failure struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"failure"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &attempt))
	assert.Equal(t, "validation", attempt.Failure.Kind)
	assert.NotEmpty(t, attempt.Failure.Message)
	assert.Zero(t, backend.finalizations())
}

func TestSubmitSurfacesBackendRejection(t *testing.T) {
	mux, backend := newTestEnv(t)
	backend.failFinalize = true
	id := createSession(t, mux)
	base := "/api/checkout/" + id

	doForm(t, mux, http.MethodPost, base+"/address", addressForm())
	doForm(t, mux, http.MethodPost, base+"/advance", url.Values{"step": {"payment"}})
	doForm(t, mux, http.MethodPost, base+"/input", cardForm())

	_, env := doForm(t, mux, http.MethodPost, base+"/submit", nil)
	require.False(t, env.Success)

	var attempt struct {
		Failure struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"failure"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &attempt))
	assert.Equal(t, "network", attempt.Failure.Kind)
	assert.Equal(t, "Card declined", attempt.Failure.Message)
}

func TestExpressCheckoutFlow(t *testing.T) {
	mux, backend := newTestEnv(t)
	id := createSession(t, mux)
	base := "/api/checkout/" + id

	doForm(t, mux, http.MethodPost, base+"/address", addressForm())
	doForm(t, mux, http.MethodPost, base+"/advance", url.Values{"step": {"payment"}})

	rec, env := doForm(t, mux, http.MethodPost, base+"/express-credential", url.Values{
		"payment_method_id": {"pm_sheet_123"},
		"method":            {"express_google_pay"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	_, env = doForm(t, mux, http.MethodPost, base+"/submit", nil)
	require.True(t, env.Success)
	assert.Equal(t, 1, backend.finalizations())

	backend.mu.Lock()
	sentMethod := backend.lastForm.Get("payment_method")
	backend.mu.Unlock()
	var sent map[string]string
	require.NoError(t, json.Unmarshal([]byte(sentMethod), &sent))
	assert.Equal(t, "pm_sheet_123", sent["id"])
	assert.Equal(t, "express_google_pay", sent["type"])
}

func TestExpressCredentialRejectsHostedMethods(t *testing.T) {
	mux, _ := newTestEnv(t)
	id := createSession(t, mux)

	rec, env := doForm(t, mux, http.MethodPost, "/api/checkout/"+id+"/express-credential", url.Values{
		"payment_method_id": {"pm_123"},
		"method":            {"card"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestSelectMethodEndpoint(t *testing.T) {
	mux, _ := newTestEnv(t)
	id := createSession(t, mux)
	base := "/api/checkout/" + id

	rec, env := doForm(t, mux, http.MethodPost, base+"/method", url.Values{"method": {"sepa_debit"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	rec, _ = doForm(t, mux, http.MethodPost, base+"/method", url.Values{"method": {"paypal"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyVoucherEndpoint(t *testing.T) {
	mux, _ := newTestEnv(t)
	id := createSession(t, mux)

	rec, env := doForm(t, mux, http.MethodPost, "/api/checkout/"+id+"/voucher", url.Values{"voucher_code": {"WELCOME10"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var result struct {
		Code     string  `json:"code"`
		Discount float64 `json:"discount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "WELCOME10", result.Code)
	assert.Equal(t, 4.0, result.Discount)
}

func TestUnknownSessionReturns404(t *testing.T) {
	mux, _ := newTestEnv(t)

	rec, env := doForm(t, mux, http.MethodGet, "/api/checkout/unknown", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestEndSession(t *testing.T) {
	mux, _ := newTestEnv(t)
	id := createSession(t, mux)

	rec, _ := doForm(t, mux, http.MethodDelete, "/api/checkout/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doForm(t, mux, http.MethodGet, "/api/checkout/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckEmailEndpoint(t *testing.T) {
	mux, _ := newTestEnv(t)

	rec, env := doForm(t, mux, http.MethodPost, "/api/email-check", url.Values{"email": {"anna@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	rec, _ = doForm(t, mux, http.MethodPost, "/api/email-check", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExpressQRFragment(t *testing.T) {
	mux, _ := newTestEnv(t)
	id := createSession(t, mux)

	rec, _ := doForm(t, mux, http.MethodGet, "/api/checkout/"+id+"/express-qr", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "data:image/png;base64,")
	assert.Contains(t, rec.Body.String(), "session_id="+id)
}

func TestOrderSummaryFragment(t *testing.T) {
	mux, _ := newTestEnv(t)
	id := createSession(t, mux)
	base := "/api/checkout/" + id

	doForm(t, mux, http.MethodPost, base+"/address", addressForm())
	doForm(t, mux, http.MethodPost, base+"/advance", url.Values{"step": {"payment"}})
	doForm(t, mux, http.MethodPost, base+"/input", cardForm())
	doForm(t, mux, http.MethodPost, base+"/submit", nil)

	rec, _ := doForm(t, mux, http.MethodGet, base+"/summary", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "YP-4711")
	assert.Contains(t, body, "Classic Tee")
	assert.Contains(t, body, "Anna Muster")
}
