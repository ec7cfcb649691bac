// Package mcp provides MCP (Model Context Protocol) transport integration for the x402 payment protocol.
//
// This package enables paid tool calls in MCP servers and automatic payment handling in MCP clients.
//
// # Client Usage
//
// Wrap an MCP session with payment handling:
//
//	import (
//	    "context"
//	    "github.com/x402labs/x402-go/mcp"
//	    mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
//	)
//
//	// Connect to MCP server using the official SDK
//	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "my-agent", Version: "1.0.0"}, nil)
//	session, _ := mcpClient.Connect(ctx, transport, nil)
//
//	// Adapt the SDK session and wrap it with x402 (AutoPayment defaults to true)
//	adapter := mcp.NewMCPClientAdapter(mcpClient, session)
//	x402Mcp := mcp.NewX402MCPClientFromConfig(adapter, []mcp.SchemeRegistration{
//	    {Network: "eip155:84532", Client: evmClientScheme},
//	}, mcp.Options{})
//
//	// Call tools - payment handled automatically
//	result, err := x402Mcp.CallTool(ctx, "get_weather", map[string]interface{}{"city": "NYC"})
//
// # Server Usage
//
// Wrap tool handlers with payment:
//
//	import (
//	    "context"
//	    x402 "github.com/x402labs/x402-go"
//	    "github.com/x402labs/x402-go/mcp"
//	)
//
//	// Create resource server
//	resourceServer := x402.NewX402ResourceServer(
//	    x402.WithFacilitatorClient(facilitatorClient),
//	    x402.WithSchemeServer("eip155:84532", evmServerScheme),
//	)
//
//	// Build payment requirements
//	accepts, _ := resourceServer.BuildPaymentRequirements(ctx, config)
//
//	// Create payment wrapper
//	wrapper := mcp.CreatePaymentWrapper(resourceServer, mcp.PaymentWrapperConfig{
//	    Accepts: accepts,
//	})
//
//	// Wrap a paid tool handler
//	paidHandler := wrapper(func(ctx context.Context, args map[string]interface{}, toolCtx mcp.MCPToolContext) (mcp.MCPToolResult, error) {
//	    return mcp.MCPToolResult{Content: []mcp.MCPContentItem{{Type: "text", Text: "result"}}}, nil
//	})
//
// # Factory Functions
//
// NewX402MCPClientFromConfig creates a client with scheme registrations:
//
//	x402Mcp := mcp.NewX402MCPClientFromConfig(adapter, []mcp.SchemeRegistration{
//	    {Network: "eip155:84532", Client: evmClientScheme},
//	}, mcp.Options{})
package mcp
