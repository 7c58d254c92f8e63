package handle

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/billing"
	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/store"
	"content-proxy/api/internal/yookassa"
)

type createPaymentRequest struct {
	Plan          string `json:"plan"`
	PaymentMethod string `json:"payment_method"`
	AutoRenew     *bool  `json:"auto_renew"`
	ReturnURL     string `json:"return_url"`
}

// Payment routes ?action=create|webhook|cancel. Only POST is served.
func (h *Handle) Payment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	action := r.URL.Query().Get("action")
	switch action {
	case "create", "webhook", "cancel":
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if h.Payments == nil || h.Subscriptions == nil {
		h.fail(w, r, apierr.NotConfigured("DATABASE_URL"))
		return
	}
	switch action {
	case "create":
		h.createPayment(w, r)
	case "webhook":
		h.paymentWebhook(w, r)
	case "cancel":
		h.cancelSubscription(w, r)
	}
}

func (h *Handle) createPayment(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Signer.Verify(userToken(r))
	if err != nil {
		h.fail(w, r, apierr.New(http.StatusUnauthorized, "Unauthorized"))
		return
	}
	var in createPaymentRequest
	if err := decodeBody(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	planID := strings.TrimSpace(in.Plan)
	if planID == "" {
		planID = billing.DefaultPlan
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = "bank_card"
	}
	autoRenew := in.AutoRenew == nil || *in.AutoRenew

	plan, ok := h.Plans.Get(planID)
	if !ok {
		h.fail(w, r, apierr.Invalid("Invalid plan"))
		return
	}
	ctx := r.Context()
	log := logger(ctx).With(zap.Int64("user_id", claims.UserID), zap.String("plan", plan.ID))

	if plan.Free() {
		subID, err := h.Subscriptions.Activate(ctx, claims.UserID, plan.ID, h.Now(), plan.DurationDays, autoRenew)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		log.Info("free plan activated", zap.Int64("subscription_id", subID))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"subscription_id": subID,
			"message":         "Free plan activated",
		})
		return
	}

	if h.Checkout == nil || !h.Checkout.Configured() {
		h.fail(w, r, apierr.New(http.StatusInternalServerError, "Payment system not configured"))
		return
	}
	returnURL := strings.TrimSpace(in.ReturnURL)
	if returnURL == "" {
		returnURL = h.PaymentReturnURL
	}
	description := "Подписка " + plan.Name + " на " + h.PaymentBrand
	req := yookassa.CreatePaymentRequest{
		Amount:       yookassa.Amount{Value: plan.AmountValue(), Currency: yookassa.CurrencyRUB},
		Confirmation: yookassa.Confirmation{Type: yookassa.ConfirmationRedirect, ReturnURL: returnURL},
		Capture:      true,
		Description:  description,
		Metadata: map[string]string{
			"user_id":    strconv.FormatInt(claims.UserID, 10),
			"plan_type":  plan.ID,
			"auto_renew": strconv.FormatBool(autoRenew),
		},
		Receipt: &yookassa.Receipt{
			Customer: yookassa.Customer{Email: claims.Email},
			Items: []yookassa.ReceiptItem{{
				Description: "Подписка " + plan.Name,
				Quantity:    "1",
				Amount:      yookassa.Amount{Value: plan.AmountValue(), Currency: yookassa.CurrencyRUB},
				VatCode:     1,
			}},
		},
	}
	if method == "sbp" {
		req.PaymentMethodData = &yookassa.PaymentMethodData{Type: "sbp"}
	}

	p, err := h.Checkout.CreatePayment(ctx, req)
	var pe *provider.Error
	if errors.As(err, &pe) {
		logFailure(ctx, pe.StatusCode, err)
		writeError(w, pe.StatusCode, "YooKassa error: "+pe.Body)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	paymentID, err := h.Payments.CreatePending(ctx, claims.UserID, plan.Price, method, p.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	log.Info("payment created", zap.String("yookassa_id", p.ID), zap.Int64("payment_id", paymentID))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"payment_id":          paymentID,
		"confirmation_url":    p.ConfirmationURL(),
		"yookassa_payment_id": p.ID,
	})
}

// paymentWebhook acknowledges every notification except when storage fails,
// so YooKassa only retries what can succeed later.
func (h *Handle) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var n yookassa.Notification
	if err := decodeBody(r, &n); err != nil {
		logger(ctx).Warn("webhook body", zap.Error(err))
		ack(w)
		return
	}
	if n.Event != yookassa.EventPaymentSucceeded {
		ack(w)
		return
	}

	obj := n.Object
	log := logger(ctx).With(zap.String("yookassa_id", obj.ID))
	userID, err := strconv.ParseInt(obj.Metadata["user_id"], 10, 64)
	if err != nil {
		log.Warn("webhook without user_id", zap.Error(err))
		ack(w)
		return
	}
	planID := obj.Metadata["plan_type"]
	if planID == "" {
		planID = billing.DefaultPlan
	}
	autoRenew := true
	if v, ok := obj.Metadata["auto_renew"]; ok {
		autoRenew = strings.EqualFold(v, "true")
	}

	subID, err := h.Payments.CompleteWithSubscription(ctx, store.Completion{
		YooKassaID: obj.ID,
		ReceiptURL: obj.ReceiptRegistration,
		UserID:     userID,
		Plan:       planID,
		Days:       h.Plans.GetOrDefault(planID).DurationDays,
		AutoRenew:  autoRenew,
		At:         h.Now(),
	})
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("webhook for unknown payment")
		ack(w)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	log.Info("subscription activated", zap.Int64("user_id", userID), zap.Int64("subscription_id", subID))
	ack(w)
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
}

func (h *Handle) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Signer.Verify(userToken(r))
	if err != nil {
		h.fail(w, r, apierr.New(http.StatusUnauthorized, "Unauthorized"))
		return
	}
	_, err = h.Subscriptions.CancelAutoRenew(r.Context(), claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, apierr.New(http.StatusNotFound, "No active subscription found"))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Auto-renewal cancelled"})
}

