package notifyrepo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Nganga02/nexus/util/httpx"
)

type httpRepo struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTP(url, apiKey string) Repo {
	return &httpRepo{url: url, apiKey: apiKey, client: httpx.Client()}
}

func (r *httpRepo) NotifyPaymentResult(ctx context.Context, n PaymentResultNote) error {
	subject := fmt.Sprintf("Payment confirmation for booking %s", n.BookingID)
	message := fmt.Sprintf("Payment of KES %d.%02d received. Receipt: %s",
		n.AmountCents/100, n.AmountCents%100, n.MpesaRef)
	if n.Outcome != "successful" {
		subject = fmt.Sprintf("Payment failed for booking %s", n.BookingID)
		message = fmt.Sprintf("Your payment of KES %d.%02d could not be completed.",
			n.AmountCents/100, n.AmountCents%100)
	}

	body := map[string]any{
		"to":      n.Email,
		"subject": subject,
		"message": message,
	}
	b, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notifier rejected message: %s", resp.Status)
	}
	return nil
}
