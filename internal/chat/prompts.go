package chat

import (
	"fmt"
	"strings"

	"github.com/storequery/storequery/internal/llm"
)

// SchemaDescription documents the queryable relations for the
// generation prompts. Text in parentheses reads "column_name (TYPE,
// brief description)".
const SchemaDescription = `Tables:
orders(
    order_id (UUID, primary key),
    store_id (UUID, foreign key -> stores.store_id),
    customer_id (UUID, foreign key -> customers.customer_id),
    external_location_id (STRING, external system's location identifier),
    external_order_id (STRING, external system's order identifier),
    total_amount_in_cents (INTEGER, total order value),
    discount_amount_in_cents (INTEGER, discount applied),
    delivery_fee_in_cents (INTEGER, fee charged for delivery),
    created_at (DATETIME, order creation timestamp),
    updated_at (DATETIME, last update timestamp),
    fulfillment_type (ENUM: "pickup"|"delivery"|"curbside"),
    tip_amount_in_cents (INTEGER, tip given by customer),
    service_fee_in_cents (INTEGER, platform service fee),
    subscription_discounts_metadata (JSON, subscription discount details),
    notes (STRING, free-text notes on order),
    delivery_info (JSON, delivery details like addresses/times),
    risk_level (INTEGER, fraud risk score: 0 = low, 1 = high),
    order_type (ENUM: "regular_checkout"|"store_credit_reload"|"gift_card"|"subscription_purchase"),
    platform_fee_in_cents (INTEGER, platform fee),
    scheduled_fulfillment_at (DATETIME, scheduled pickup/delivery time)
)
customers(
    customer_id (UUID, primary key),
    store_id (UUID, foreign key -> stores.store_id),
    external_customer_id (STRING, external system's customer ID)
)
stores(
    store_id (UUID, primary key),
    external_store_id (STRING, external system's store ID),
    name (STRING, store name),
    active (BOOLEAN, store status),
    created_at (DATETIME, store record creation),
    updated_at (DATETIME, store record last update),
    delivery_fee (JSON, store's base delivery fee settings),
    platform_fee (JSON, store's platform fee settings),
    consumer_fee (JSON, consumer-facing fees),
    pre_sale (JSON, whether scheduled orders are allowed)
)`

// Canonical fallback answers. These exact sentences are the only
// error-shaped text that ever reaches an end user.
const (
	CanonicalNoAnswer  = "I’m sorry, I couldn’t retrieve an answer—please rephrase or check the data."
	CanonicalZeroMatch = "It seems there are zero matching records—please verify your question."
)

func dialectDirective(dialect string) string {
	switch dialect {
	case "postgres":
		return "Use PostgreSQL syntax only."
	case "duckdb":
		return "Use DuckDB SQL syntax (PostgreSQL-like)."
	default:
		return "Use SQLite syntax only. Do not use any MySQL-specific functions " +
			"such as DATE_SUB, CURDATE() or DATE_FORMAT. Instead, use " +
			"DATE('now', '-X days'), DATE('now'), strftime(...), etc."
	}
}

func transcriptOrNone(transcript string) string {
	if strings.TrimSpace(transcript) == "" {
		return "(none)"
	}
	return transcript
}

// generationMessages assembles the few-shot initial-mode prompt:
// schema + instructions, worked examples, memory transcript, tenant
// context, then the question.
func generationMessages(question string, sess SessionContext, transcript string) []llm.Message {
	system := sess.SchemaDescription + "\n" + dialectDirective(sess.Dialect) + "\n" +
		"Convert the user's natural language request into a single valid SQL query for this schema. " +
		"Treat any possible question, simple or complex, as valid. " +
		"Always refer to the conversation history to understand context or implied references, " +
		"then match the intent to the available tables/columns and generate the appropriate query. " +
		"If the user's question relies on prior turns, use that context to disambiguate. " +
		"Return only one SQL statement (no extra commentary)."

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	messages = append(messages, sqlExamples()...)
	messages = append(messages,
		llm.Message{Role: llm.RoleUser, Content: "Conversation memory so far: " + transcriptOrNone(transcript)},
		llm.Message{Role: llm.RoleUser, Content: "Context: " + sess.ContextLine},
		llm.Message{Role: llm.RoleUser, Content: question},
	)
	return messages
}

// repairMessages assembles the repair-mode prompt: the failing
// statement and its native error replace the bare question.
func repairMessages(question, badSQL, execError string, sess SessionContext, transcript string) []llm.Message {
	system := sess.SchemaDescription + "\n" + dialectDirective(sess.Dialect) + "\n" +
		"One of your previously generated SQL statements failed with an error. " +
		"Below is the user's conversation history, original question, the SQL you provided, " +
		"the database error message, and the serving context. " +
		"Correct the SQL so it is valid for this schema and satisfies the original request. " +
		"Return only the corrected SQL statement (no commentary)."

	detail := fmt.Sprintf(
		"Conversation memory so far: %s\nUser question: %s\nBad SQL: %s\nSQL error: %s",
		transcriptOrNone(transcript), question, badSQL, execError,
	)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: "Context: " + sess.ContextLine},
		{Role: llm.RoleUser, Content: detail},
	}
}

// summaryMessages assembles the summarization prompt over the terminal
// result description.
func summaryMessages(question, finalSQL, resultContent string, sess SessionContext, transcript string) []llm.Message {
	system := "You are given:\n" +
		"- The user's original question\n" +
		"- The final SQL query that was executed\n" +
		"- The resulting table (or an error message)\n" +
		"- The conversation memory so far\n\n" +
		"Instructions:\n" +
		"1. Use both the SQL result table and the conversation history to answer the question.\n" +
		"2. Incorporate context from the conversation memory where relevant, but never let memory override the concrete numbers in the table.\n" +
		"3. If the result has multiple rows, include a small markdown-style table showing those rows.\n" +
		"4. Below that table, draw one or two brief but informative insights with precise numbers, helpful for the business (in dollars, not cents).\n" +
		"5. If the insights clearly point to a promotional opportunity, propose a single, concrete marketing idea.\n" +
		"6. If there is no promotional opportunity, do not output any text about marketing at all; stop after your insight sentence(s).\n" +
		"7. Always use only the rows shown. Do not add, infer, or omit values.\n" +
		"8. Monetary columns are stored in integer cents; divide by 100 and present dollars.\n" +
		"9. If there is an error or no rows, first consult the conversation memory to try to answer the question. If you still cannot provide an answer, reply exactly:\n" +
		"   " + CanonicalNoAnswer + "\n" +
		"10. If the single resulting value is 0, reply exactly:\n" +
		"   " + CanonicalZeroMatch + "\n" +
		"11. Otherwise, for a single non-zero value, answer in one sentence (no table needed) and only add a marketing idea if it follows logically from the insight.\n" +
		"Make sure all numbers and units in the final output are properly spaced and punctuated. " +
		"Do not merge numbers with surrounding words (write 646.27 in revenue, not 646.27inrevenue)."

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: "User question: How many months of order data do I have? and what are those months?"},
		{Role: llm.RoleAssistant, Content: "There are two months with order data: 2025-03 and 2025-04. So the user has data for March 2025 and April 2025."},
		{Role: llm.RoleUser, Content: "Context: " + sess.ContextLine},
	}
	detail := fmt.Sprintf(
		"Conversation memory so far: %s\nUser question: %s\nSQL Query: %s\n%s",
		transcriptOrNone(transcript), question, finalSQL, resultContent,
	)
	return append(messages, llm.Message{Role: llm.RoleUser, Content: detail})
}

func sqlExamples() []llm.Message {
	return []llm.Message{
		{
			Role:    llm.RoleUser,
			Content: "Compare the number of orders between March 1-7 and March 8-14, 2025 for store 'Migos Fine Foods'.",
		},
		{
			Role: llm.RoleAssistant,
			Content: "SELECT\n" +
				"  SUM(CASE WHEN DATE(o.created_at) BETWEEN '2025-03-01' AND '2025-03-07' THEN 1 ELSE 0 END) AS week1_count,\n" +
				"  SUM(CASE WHEN DATE(o.created_at) BETWEEN '2025-03-08' AND '2025-03-14' THEN 1 ELSE 0 END) AS week2_count\n" +
				"FROM orders AS o\n" +
				"JOIN stores AS s ON o.store_id = s.store_id\n" +
				"WHERE s.name = 'Migos Fine Foods';",
		},
		{
			Role:    llm.RoleUser,
			Content: "Total revenue (in dollars) for 'Tikka Shack' from January 1 to March 31, 2025?",
		},
		{
			Role: llm.RoleAssistant,
			Content: "SELECT\n" +
				"  ROUND(SUM(o.total_amount_in_cents) / 100.0, 2) AS total_revenue\n" +
				"FROM orders AS o\n" +
				"JOIN stores AS s ON o.store_id = s.store_id\n" +
				"WHERE s.name = 'Tikka Shack'\n" +
				"  AND DATE(o.created_at) BETWEEN '2025-01-01' AND '2025-03-31';",
		},
		{
			Role:    llm.RoleUser,
			Content: "How many pickup orders did 'Coffee Drip' have between March 15 and March 21, 2025?",
		},
		{
			Role: llm.RoleAssistant,
			Content: "SELECT\n" +
				"  COUNT(*) AS pickup_orders_week\n" +
				"FROM orders AS o\n" +
				"JOIN stores AS s ON o.store_id = s.store_id\n" +
				"WHERE s.name = 'Coffee Drip'\n" +
				"  AND o.fulfillment_type = 'pickup'\n" +
				"  AND DATE(o.created_at) BETWEEN '2025-03-15' AND '2025-03-21';",
		},
	}
}
