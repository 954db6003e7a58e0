package mpesarepo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Nganga02/nexus/util/httpx"
)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

type httpRepo struct {
	cfg    Config
	client *http.Client

	mu         sync.Mutex
	token      string
	tokenUntil time.Time
}

func NewHTTP(cfg Config) Repo {
	return &httpRepo{cfg: cfg, client: httpx.Client()}
}

func (r *httpRepo) accessToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token != "" && time.Now().Before(r.tokenUntil) {
		return r.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(r.cfg.ConsumerKey, r.cfg.ConsumerSecret)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("daraja oauth failed: %s", resp.Status)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("daraja: empty access token")
	}

	r.token = out.AccessToken
	// Daraja tokens last ~an hour; refresh a bit early.
	r.tokenUntil = time.Now().Add(50 * time.Minute)
	return r.token, nil
}

func (r *httpRepo) InitiateStkPush(ctx context.Context, req StkPushReq) (*StkPushResp, error) {
	tok, err := r.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(r.cfg.ShortCode + r.cfg.Passkey + ts))

	// Daraja takes whole shillings; amounts are stored in cents.
	amount := (req.AmountCents + 99) / 100

	body := map[string]any{
		"BusinessShortCode": r.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount,
		"PartyA":            req.PhoneNumber,
		"PartyB":            r.cfg.ShortCode,
		"PhoneNumber":       req.PhoneNumber,
		"CallBackURL":       r.cfg.CallbackURL,
		"AccountReference":  req.AccountReference,
		"TransactionDesc":   req.Description,
	}
	b, _ := json.Marshal(body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+tok)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("daraja stk push failed: %s", resp.Status)
	}

	var out struct {
		MerchantRequestID   string `json:"MerchantRequestID"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		CustomerMessage     string `json:"CustomerMessage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.CheckoutRequestID == "" {
		return nil, errors.New("daraja: empty CheckoutRequestID")
	}
	if out.ResponseCode != "0" {
		return nil, fmt.Errorf("daraja stk push rejected: %s %s", out.ResponseCode, out.ResponseDescription)
	}

	return &StkPushResp{
		MerchantRequestID: out.MerchantRequestID,
		CheckoutRequestID: out.CheckoutRequestID,
		ResponseCode:      out.ResponseCode,
		CustomerMessage:   out.CustomerMessage,
	}, nil
}
