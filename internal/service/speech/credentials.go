package speech

import (
	"fmt"
	"net/url"
	"strings"

	speechmodel "github.com/zhouzirui/emotion-voice/backend/internal/model/speech"
)

// resolveCredentials returns the trimmed AppID and access token.
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("%w: config is nil", ErrNotConfigured)
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		token = strings.TrimSpace(cfg.APIKey)
	}

	if appID == "" || token == "" {
		return "", "", fmt.Errorf("%w: AppID or AccessToken missing", ErrNotConfigured)
	}

	return appID, token, nil
}

// resolveEndpoint points defaultEndpoint at cfg.BaseURL when one is set. Only
// the scheme and host are taken from BaseURL; http and https become ws and
// wss. A BaseURL that does not parse leaves the default in place.
func resolveEndpoint(cfg *speechmodel.SpeechConfig, defaultEndpoint string) string {
	if cfg == nil || strings.TrimSpace(cfg.BaseURL) == "" {
		return defaultEndpoint
	}

	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Host == "" {
		return defaultEndpoint
	}
	endpoint, err := url.Parse(defaultEndpoint)
	if err != nil {
		return defaultEndpoint
	}

	switch base.Scheme {
	case "http", "ws":
		endpoint.Scheme = "ws"
	default:
		endpoint.Scheme = "wss"
	}
	endpoint.Host = base.Host
	return endpoint.String()
}
