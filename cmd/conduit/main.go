// Conduit is a multi-backend router for model completion requests.
//
// It presents a single OpenAI-compatible endpoint and fans requests out
// to registered upstream channels, providing:
//   - Channel registry with encrypted credential storage
//   - Weighted channel selection informed by live health metrics
//   - Per-vendor request and response translation
//   - Automatic failover on retryable upstream errors
//   - Usage accounting and cost attribution per tenant
//
// Usage:
//
//	# Start server with default configuration
//	conduit run
//
//	# Start with custom configuration file
//	conduit run --config /path/to/config.yaml
//
//	# Validate configuration without starting
//	conduit validate
//
//	# Show version information
//	conduit version
package main

func main() {
	Execute()
}
