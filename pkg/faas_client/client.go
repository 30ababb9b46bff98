package faas_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config - параметры клиента шлюза
type Config struct {
	GatewayURL       string
	Timeout          time.Duration
	MaxResponseBytes int64
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		GatewayURL:       "http://gateway.openfaas:8080",
		Timeout:          30 * time.Second,
		MaxResponseBytes: 64 << 20,
	}
}

// Client вызывает функции инференса через шлюз: POST {gateway}/function/{name}
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient создает новый клиент
func NewClient(config Config) *Client {
	if config.MaxResponseBytes <= 0 {
		config.MaxResponseBytes = DefaultConfig().MaxResponseBytes
	}
	config.GatewayURL = strings.TrimRight(config.GatewayURL, "/")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Invoke отправляет payload в функцию и возвращает тело ответа как JSON.
// json.RawMessage и []byte уходят как есть, остальное сериализуется.
// Ответ вида {"error": ...} ошибкой не считается, его разбирает вызывающий.
func (c *Client) Invoke(ctx context.Context, function string, payload interface{}) (json.RawMessage, error) {
	body, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса к %s: %w", function, err)
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.functionURL(function), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса к %s: %w", function, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка HTTP запроса к %s: %w", function, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа %s: %w", function, err)
	}
	if int64(len(data)) > c.config.MaxResponseBytes {
		return nil, fmt.Errorf("%w от %s: больше %d байт", ErrResponseTooLarge, function, c.config.MaxResponseBytes)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Function:   function,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") && !strings.Contains(contentType, "application/octet-stream") {
		return nil, fmt.Errorf("%w от %s: %q", ErrUnexpectedContentType, function, contentType)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("%w от %s: тело не является JSON", ErrInvalidResponse, function)
	}

	return json.RawMessage(data), nil
}

// HealthCheck проверяет доступность шлюза
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.GatewayURL+"/healthz", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("шлюз недоступен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("шлюз вернул статус %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) functionURL(function string) string {
	return c.config.GatewayURL + "/function/" + function
}

func encodePayload(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}
