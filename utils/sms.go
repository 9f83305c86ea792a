package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chaser/models"
)

// SMSClient posts reminder texts to the account's configured HTTP gateway.
type SMSClient struct {
	httpClient *http.Client
}

func NewSMSClient() *SMSClient {
	return &SMSClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type smsPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (sc *SMSClient) Send(account *models.Account, to, message string) error {
	if account.SMSGatewayURL == "" {
		return fmt.Errorf("account %d has no SMS gateway configured", account.ID)
	}
	if to == "" {
		return fmt.Errorf("no recipient phone number")
	}

	body, err := json.Marshal(smsPayload{To: to, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, account.SMSGatewayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	key, err := Decrypt(account.SMSGatewayKey)
	if err != nil {
		return fmt.Errorf("decrypting SMS gateway key: %w", err)
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to SMS gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("SMS gateway returned %d", resp.StatusCode)
	}
	return nil
}
