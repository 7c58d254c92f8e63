package handle

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/yookassa"
)

type checkoutRequest struct {
	Action      string      `json:"action"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	ReturnURL   string      `json:"return_url"`
	PaymentID   string      `json:"payment_id"`
}

// YooKassa creates and checks one-off payments without touching the database.
func (h *Handle) YooKassa(w http.ResponseWriter, r *http.Request) {
	if h.Checkout == nil || !h.Checkout.Configured() {
		h.fail(w, r, apierr.New(http.StatusInternalServerError,
			"ЮКасса не настроена. Добавьте YOOKASSA_SHOP_ID и YOOKASSA_SECRET_KEY"))
		return
	}
	var in checkoutRequest
	if err := decodeBody(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()

	switch in.Action {
	case "create":
		amount, err := strconv.ParseFloat(strings.TrimSpace(in.Amount.String()), 64)
		if err != nil || amount <= 0 {
			h.fail(w, r, apierr.Invalid("Укажите корректную сумму"))
			return
		}
		description := in.Description
		if description == "" {
			description = "Оплата на сайте"
		}
		returnURL := in.ReturnURL
		if returnURL == "" {
			returnURL = "https://example.com/success"
		}
		p, err := h.Checkout.CreatePayment(ctx, yookassa.CreatePaymentRequest{
			Amount:       yookassa.RUB(amount),
			Confirmation: yookassa.Confirmation{Type: yookassa.ConfirmationRedirect, ReturnURL: returnURL},
			Capture:      true,
			Description:  description,
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"payment_id":  p.ID,
			"payment_url": p.ConfirmationURL(),
			"status":      p.Status,
		})

	case "check":
		id := strings.TrimSpace(in.PaymentID)
		if id == "" {
			h.fail(w, r, apierr.Invalid("Укажите payment_id"))
			return
		}
		p, err := h.Checkout.GetPayment(ctx, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"payment_id": p.ID,
			"status":     p.Status,
			"paid":       p.Paid,
			"amount":     p.Amount,
		})

	default:
		h.fail(w, r, apierr.Invalid("Укажите action: create или check"))
	}
}
