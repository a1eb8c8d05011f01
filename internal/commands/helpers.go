package commands

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// enhanceError wraps an error with context and suggestions for common AWS issues.
func enhanceError(action string, err error) error {
	msg := err.Error()

	var hint string
	switch {
	case strings.Contains(msg, "NoCredentialProviders") || strings.Contains(msg, "failed to retrieve credentials"):
		hint = "Configure AWS credentials: set AWS_PROFILE, AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY, or run 'aws configure'"
	case strings.Contains(msg, "ExpiredToken"):
		hint = "AWS session token expired. Refresh credentials or run 'aws sso login'"
	case strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "UnauthorizedAccess"):
		hint = "Insufficient permissions. Cost Explorer needs ce:GetCostAndUsage; apply the IAM policy from 'billspectre init' to your role/user"
	case strings.Contains(msg, "DataUnavailable"):
		hint = "Cost Explorer has no data yet. Enable it in the Billing console and allow up to 24 hours"
	case strings.Contains(msg, "RequestExpired"):
		hint = "Request expired. Check system clock synchronization"
	case strings.Contains(msg, "Throttling") || strings.Contains(msg, "LimitExceeded"):
		hint = "API rate limit hit. Retry with fewer regions, lower --concurrency or a longer --timeout"
	}

	if hint != "" {
		return fmt.Errorf("%s: %w\n  hint: %s", action, err, hint)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// computeScopeHash identifies the analyzed account scope without exposing it.
func computeScopeHash(provider string, regions []string, profile string) string {
	input := fmt.Sprintf("provider:%s,regions:%s,profile:%s", provider, strings.Join(regions, ","), profile)
	h := sha256.Sum256([]byte(input))
	return fmt.Sprintf("sha256:%x", h)
}
