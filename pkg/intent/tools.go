// Package intent declares the tool surface the chat router exposes to the
// LLM layer: tool names, descriptions, and JSON schemas for their
// arguments. Keeping the contract in one place lets the router and any
// model provider agree on the shape without sharing code.
package intent

import "encoding/json"

// Tool is one callable surface.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"input_schema"`
	Paid        bool            `json:"paid"`       // true routes through the pricing engine
	QueryType   string          `json:"query_type"` // pricing key when Paid
}

// Tools is the full declared surface, in presentation order.
func Tools() []Tool {
	return []Tool{
		{
			Name:        "get_garden_report",
			Description: "Generate the full garden optimization report for the player's primary wallet: hero-to-pool assignments and APR improvement. Creates an invoice when unpaid.",
			QueryType:   "garden_full",
			Paid:        true,
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"wallet": {"type": "string", "description": "Override wallet address; defaults to the linked primary wallet"}
				}
			}`),
		},
		{
			Name:        "check_payment",
			Description: "Check an open invoice, optionally verifying a specific transaction hash the player provides.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"job_id": {"type": "string", "description": "Invoice ID, e.g. pay_1717243200123_a1b2c3d4"},
					"tx_hash": {"type": "string", "description": "Optional 0x transaction hash to verify directly"}
				},
				"required": ["job_id"]
			}`),
		},
		{
			Name:        "wallet_summary",
			Description: "Summarize a wallet: hero roster, balances, staked LP value, governance lock. Free tier.",
			QueryType:   "nav",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"wallet": {"type": "string", "description": "0x address; defaults to the linked primary wallet"}
				}
			}`),
		},
		{
			Name:        "price_quote",
			Description: "Quote the JEWEL cost of a paid query type for this player, with applied modifiers.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query_type": {"type": "string", "enum": ["garden_full", "wallet_deep", "hero_report", "price_alert"]}
				},
				"required": ["query_type"]
			}`),
		},
	}
}

// ByName indexes the declared tools.
func ByName() map[string]Tool {
	out := make(map[string]Tool)
	for _, t := range Tools() {
		out[t.Name] = t
	}
	return out
}
