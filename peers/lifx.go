// Package peers содержит внешние устройства, которыми управляют автоматизации:
// умную лампу по HTTP и цветное устройство через MQTT.
package peers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"BoostProg/config"
	"BoostProg/logging"
)

// LIFXSink переключает лампы LIFX через HTTP API
type LIFXSink struct {
	baseURL  string
	token    string
	selector string
	client   *http.Client
}

// NewLIFXSink создает лампу из настроек. Без токена лампа не нужна.
func NewLIFXSink(cfg config.SmartLightConfig) (*LIFXSink, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("peers: lifx: не задан token")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("peers: lifx: неверный base_url %q", cfg.BaseURL)
	}
	timeout, err := config.ParseDuration("smart_light.timeout", cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	selector := cfg.Selector
	if selector == "" {
		selector = "all"
	}
	return &LIFXSink{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		selector: selector,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Toggle переключает питание выбранных ламп
func (l *LIFXSink) Toggle(ctx context.Context) error {
	body, err := json.Marshal(map[string]float64{"duration": 0.5})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/lights/%s/toggle", l.baseURL, url.PathEscape(l.selector))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("peers: lifx: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("peers: lifx: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("peers: lifx: ответ %s", resp.Status)
	}
	logging.DebugLog("LIFX %s переключена (%d)", l.selector, resp.StatusCode)
	return nil
}
