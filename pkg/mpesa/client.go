package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenCache stores the short-lived Daraja bearer token between requests.
// A Get miss returns "" with no error.
type TokenCache interface {
	GetAccessToken() (string, error)
	SetAccessToken(token string, ttl time.Duration) error
}

type Client struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	HTTPClient     *http.Client
	Cache          TokenCache

	now func() time.Time
}

func NewClient(baseURL, consumerKey, consumerSecret, shortCode, passkey, callbackURL string, timeout time.Duration, cache TokenCache) *Client {
	return &Client{
		BaseURL:        baseURL,
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		ShortCode:      shortCode,
		Passkey:        passkey,
		CallbackURL:    callbackURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		Cache: cache,
		now:   time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// RequestError is a rejection from the provider itself, as opposed to a
// transport failure reaching it.
type RequestError struct {
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("mpesa request rejected (%s): %s", e.Code, e.Message)
}

// InvalidPhoneError is returned when a phone number cannot be normalized
// to the provider's 2547XXXXXXXX format.
type InvalidPhoneError struct {
	Phone string
}

func (e *InvalidPhoneError) Error() string {
	return fmt.Sprintf("phone number %q is not a valid Kenyan mobile number", e.Phone)
}

// NormalizePhone converts local Kenyan mobile formats (07XXXXXXXX,
// +2547XXXXXXXX, 7XXXXXXXX) to the 2547XXXXXXXX form the provider
// requires. Numbers that cannot be normalized are rejected, never
// silently coerced.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.TrimSpace(phone)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.TrimPrefix(cleaned, "+")

	switch {
	case strings.HasPrefix(cleaned, "07") && len(cleaned) == 10:
		cleaned = "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "01") && len(cleaned) == 10:
		cleaned = "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "7") && len(cleaned) == 9:
		cleaned = "254" + cleaned
	case strings.HasPrefix(cleaned, "1") && len(cleaned) == 9:
		cleaned = "254" + cleaned
	case strings.HasPrefix(cleaned, "254") && len(cleaned) == 12:
		// already international
	default:
		return "", &InvalidPhoneError{Phone: phone}
	}

	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", &InvalidPhoneError{Phone: phone}
		}
	}

	return cleaned, nil
}

// password derives the Daraja request password for the given timestamp:
// base64(shortcode + passkey + timestamp).
func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.ShortCode + c.Passkey + timestamp))
}

func (c *Client) timestamp() string {
	return c.now().Format("20060102150405")
}

// AccessToken returns a bearer token, preferring the cache. Daraja tokens
// are valid for ~1 hour; cached copies are kept slightly shorter.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.Cache != nil {
		if token, err := c.Cache.GetAccessToken(); err == nil && token != "" {
			return token, nil
		}
	}

	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.ConsumerKey, c.ConsumerSecret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty token")
	}

	if c.Cache != nil {
		// 50 minutes leaves headroom under the ~1h validity
		_ = c.Cache.SetAccessToken(tokenResp.AccessToken, 50*time.Minute)
	}

	return tokenResp.AccessToken, nil
}

// STKPush asks the provider to prompt the payer's device for the given
// amount in integer minor units. Phone must already be normalized.
func (c *Client) STKPush(ctx context.Context, phone string, amountMinor int64, accountReference, description string) (*STKPushResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.timestamp()
	requestData := STKPushRequest{
		BusinessShortCode: c.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amountMinor,
		PartyA:            phone,
		PartyB:            c.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   description,
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push request: %w", err)
	}

	url := fmt.Sprintf("%s/mpesa/stkpush/v1/processrequest", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.ErrorCode != "" {
			return nil, &RequestError{Code: errResp.ErrorCode, Message: errResp.ErrorMessage}
		}
		return nil, fmt.Errorf("push endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var response STKPushResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse push response: %w", err)
	}

	if response.ResponseCode != "0" {
		return nil, &RequestError{Code: response.ResponseCode, Message: response.ResponseDescription}
	}

	return &response, nil
}
