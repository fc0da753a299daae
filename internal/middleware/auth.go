package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/plotfit/plotfit/internal/config"
	"github.com/plotfit/plotfit/internal/logging"
)

// MinAPIKeyLength is the minimum required length for API keys
const MinAPIKeyLength = config.MinAPIKeyLength

// ValidateAPIKey checks if an API key meets the security requirements
func ValidateAPIKey(key string) bool {
	// Key must be at least MinAPIKeyLength characters
	if len(key) < MinAPIKeyLength {
		return false
	}
	// Key must not contain only whitespace
	if strings.TrimSpace(key) == "" {
		return false
	}
	return true
}

// APIKeyAuth creates an API key authentication middleware. CORS preflight
// requests pass through unauthenticated.
func APIKeyAuth(logger *logging.Logger, cfg config.AuthConfig) fiber.Handler {
	// If auth is disabled, allow all requests
	if !cfg.Enabled {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	apiKeys := cfg.APIKeys
	var validKeys [][]byte
	for _, key := range apiKeys {
		if key != "" {
			if !ValidateAPIKey(key) {
				logger.Warn("API key does not meet security requirements",
					"key_length", len(key),
					"min_required", MinAPIKeyLength,
					"key_prefix", maskAPIKey(key),
				)
				continue
			}
			validKeys = append(validKeys, []byte(key))
		}
	}

	// Warn if no valid API keys configured
	if len(validKeys) == 0 && len(apiKeys) > 0 {
		logger.Error("No valid API keys configured - all provided keys failed validation",
			"total_keys", len(apiKeys),
			"min_required_length", MinAPIKeyLength,
		)
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		// Get API key from header
		// Support multiple header formats:
		// 1. X-API-Key: your-api-key
		// 2. Authorization: Bearer your-api-key
		// 3. Authorization: your-api-key
		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			authHeader := c.Get("Authorization")
			if authHeader != "" {
				// Try "Bearer token" format
				if after, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
					apiKey = after
				} else {
					// Try plain token format
					apiKey = authHeader
				}
			}
		}

		// Check if API key is valid
		if apiKey == "" {
			logger.Warn("API key missing",
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
			)
			return WriteError(c, fiber.StatusUnauthorized, "UNAUTHORIZED",
				"API key is required. Provide it via X-API-Key header or Authorization header.")
		}

		if !matchesKey(validKeys, apiKey) {
			logger.Warn("Invalid API key",
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
				"api_key_prefix", maskAPIKey(apiKey),
			)
			return WriteError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key.")
		}

		// Log successful authentication
		logger.Debug("API key authenticated",
			"path", c.Path(),
			"method", c.Method(),
			"ip", c.IP(),
		)

		return c.Next()
	}
}

// matchesKey compares in constant time against every configured key
func matchesKey(keys [][]byte, candidate string) bool {
	c := []byte(candidate)
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, c)
	}
	return found == 1
}

// maskAPIKey masks API key for logging (show only first 4 chars)
func maskAPIKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
