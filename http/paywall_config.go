package http

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	x402 "github.com/x402labs/x402-go"
)

// PaywallConfig customizes the browser paywall page.
type PaywallConfig struct {
	// CDPClientKey is the Coinbase Developer Platform client key used by the
	// embedded wallet widget.
	CDPClientKey string

	// AppName is displayed in the paywall header.
	AppName string

	// AppLogo is a URL to a logo image displayed in the paywall header.
	AppLogo string

	// SessionTokenEndpoint is the endpoint used to mint onramp session tokens.
	SessionTokenEndpoint string

	// Testnet switches the widget into testnet mode.
	Testnet bool

	// CurrentURL overrides the URL shown to the user. Defaults to the
	// resource URL from the 402 response.
	CurrentURL string
}

// injectPaywallConfig injects the window.x402 configuration object into a
// paywall template, just before the closing body tag. Config strings are
// HTML-escaped; the payment data is embedded as JSON.
func injectPaywallConfig(template string, paymentRequired x402.PaymentRequired, config *PaywallConfig) string {
	if config == nil {
		config = &PaywallConfig{}
	}

	currentURL := config.CurrentURL
	if currentURL == "" && paymentRequired.Resource != nil {
		currentURL = paymentRequired.Resource.URL
	}

	requiredJSON, err := json.Marshal(paymentRequired)
	if err != nil {
		requiredJSON = []byte("null")
	}

	var b strings.Builder
	b.WriteString("<script>\n  window.x402 = {\n")
	fmt.Fprintf(&b, "    paymentRequired: %s,\n", string(requiredJSON))
	fmt.Fprintf(&b, "    currentUrl: %q,\n", html.EscapeString(currentURL))
	fmt.Fprintf(&b, "    appName: %q,\n", html.EscapeString(config.AppName))
	fmt.Fprintf(&b, "    appLogo: %q,\n", html.EscapeString(config.AppLogo))
	fmt.Fprintf(&b, "    cdpClientKey: %q,\n", html.EscapeString(config.CDPClientKey))
	fmt.Fprintf(&b, "    sessionTokenEndpoint: %q,\n", html.EscapeString(config.SessionTokenEndpoint))
	fmt.Fprintf(&b, "    testnet: %t\n", config.Testnet)
	b.WriteString("  };\n</script>\n")

	script := b.String()

	if idx := strings.LastIndex(template, "</body>"); idx >= 0 {
		return template[:idx] + script + template[idx:]
	}
	return template + script
}

// EVMPaywallTemplate is the built-in paywall page for EVM networks. The
// injected window.x402 object drives the payment widget.
const EVMPaywallTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Payment Required</title>
  <style>
    body { font-family: -apple-system, sans-serif; margin: 0; background: #f7f8fa; }
    .paywall { max-width: 28rem; margin: 10vh auto; padding: 2rem; background: #fff; border-radius: 12px; box-shadow: 0 1px 4px rgba(0,0,0,.08); }
    .paywall h1 { font-size: 1.25rem; margin: 0 0 .5rem; }
    .paywall p { color: #5b616e; margin: 0 0 1.5rem; }
  </style>
</head>
<body>
  <div class="paywall" id="x402-paywall">
    <h1>Payment Required</h1>
    <p>This content requires a one-time payment to access.</p>
    <div id="x402-widget"></div>
  </div>
</body>
</html>`

// SVMPaywallTemplate is the built-in paywall page for Solana networks.
const SVMPaywallTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Payment Required</title>
  <style>
    body { font-family: -apple-system, sans-serif; margin: 0; background: #f7f8fa; }
    .paywall { max-width: 28rem; margin: 10vh auto; padding: 2rem; background: #fff; border-radius: 12px; box-shadow: 0 1px 4px rgba(0,0,0,.08); }
    .paywall h1 { font-size: 1.25rem; margin: 0 0 .5rem; }
    .paywall p { color: #5b616e; margin: 0 0 1.5rem; }
  </style>
</head>
<body>
  <div class="paywall" id="x402-paywall">
    <h1>Payment Required</h1>
    <p>This content requires a one-time payment to access.</p>
    <div id="x402-widget"></div>
  </div>
</body>
</html>`
