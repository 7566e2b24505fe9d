package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/targetspro/adwatch/internal/models"
)

// APIClient talks to a running adwatch server. The base URL and the auth
// token come from viper so the CLI's --server flag and the config file both
// work.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient() (*APIClient, error) {
	baseURL := viper.GetString("server")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (c *APIClient) doRequest(method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	token := viper.GetString("token")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(respBody))
	}

	return respBody, nil
}

func (c *APIClient) Login(username, password string) (string, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	resp, err := c.doRequest("POST", "/api/v1/auth/login", body)
	if err != nil {
		return "", err
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}

	return result.Token, nil
}

func (c *APIClient) ListAlerts(status, severity string, limit int) ([]models.Alert, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if severity != "" {
		params.Set("severity", severity)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	path := "/api/v1/alerts"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var alerts []models.Alert
	if err := json.Unmarshal(resp, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *APIClient) AcknowledgeAlert(id string) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/alerts/%s/acknowledge", id), nil)
	return err
}

func (c *APIClient) ResolveAlert(id string) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/alerts/%s/resolve", id), nil)
	return err
}

func (c *APIClient) DismissAlert(id string) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/alerts/%s/dismiss", id), nil)
	return err
}

func (c *APIClient) DispatchAlert(id string) (dispatched, failed int, err error) {
	resp, err := c.doRequest("POST", fmt.Sprintf("/api/v1/alerts/%s/dispatch", id), nil)
	if err != nil {
		return 0, 0, err
	}

	var result struct {
		Dispatched int `json:"dispatched"`
		Failed     int `json:"failed"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, 0, err
	}
	return result.Dispatched, result.Failed, nil
}

func (c *APIClient) EscalateAlerts() (int, error) {
	resp, err := c.doRequest("POST", "/api/v1/alerts/escalate", nil)
	if err != nil {
		return 0, err
	}

	var result struct {
		Escalated int `json:"escalated"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, err
	}
	return result.Escalated, nil
}

func (c *APIClient) ListDeliveries(alertID string) ([]models.AlertDelivery, error) {
	resp, err := c.doRequest("GET", fmt.Sprintf("/api/v1/alerts/%s/deliveries", alertID), nil)
	if err != nil {
		return nil, err
	}

	var deliveries []models.AlertDelivery
	if err := json.Unmarshal(resp, &deliveries); err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (c *APIClient) ListRules(active string) ([]models.AlertRule, error) {
	path := "/api/v1/rules"
	if active != "" {
		path += "?active=" + active
	}

	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var rules []models.AlertRule
	if err := json.Unmarshal(resp, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *APIClient) CreateRule(rule *models.AlertRule) error {
	_, err := c.doRequest("POST", "/api/v1/rules", rule)
	return err
}

func (c *APIClient) DeleteRule(id string) error {
	_, err := c.doRequest("DELETE", fmt.Sprintf("/api/v1/rules/%s", id), nil)
	return err
}

func (c *APIClient) EnableRule(id string) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/rules/%s/enable", id), nil)
	return err
}

func (c *APIClient) DisableRule(id string) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/rules/%s/disable", id), nil)
	return err
}

func (c *APIClient) ListChannels() ([]models.NotificationChannel, error) {
	resp, err := c.doRequest("GET", "/api/v1/channels", nil)
	if err != nil {
		return nil, err
	}

	var channels []models.NotificationChannel
	if err := json.Unmarshal(resp, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (c *APIClient) CreateChannel(channel *models.NotificationChannel) error {
	_, err := c.doRequest("POST", "/api/v1/channels", channel)
	return err
}

func (c *APIClient) DeleteChannel(id string) error {
	_, err := c.doRequest("DELETE", fmt.Sprintf("/api/v1/channels/%s", id), nil)
	return err
}
