package extraction

import (
	"strings"

	"spendlog/internal/core"
)

// extractionPrompt builds the instruction sent to the model for one expense
// description. The reference date anchors relative phrases ("yesterday",
// "this morning") and is the default when no date is mentioned.
func extractionPrompt(text string, refDate core.Date) string {
	var b strings.Builder

	b.WriteString("You are an expense extraction assistant. Extract structured data from the user's expense description.\n\n")
	b.WriteString("Today's date is " + refDate.String() + ". Resolve relative dates (\"yesterday\", \"last Friday\", \"next week\") against it.\n\n")
	b.WriteString("Extract these fields:\n")
	b.WriteString("- \"date\": string, ISO format \"YYYY-MM-DD\"; use today's date if the text gives none\n")
	b.WriteString("- \"category\": one of [" + strings.Join(core.KnownCategories, ", ") + "]; use \"" + core.CategoryOther + "\" when unsure\n")
	b.WriteString("- \"amount\": number, the positive amount spent\n")
	b.WriteString("- \"currency\": ISO 4217 code (USD, EUR, INR, ...); omit if the text names no currency\n\n")
	b.WriteString("User input: " + text + "\n\n")
	b.WriteString("Return ONLY valid raw JSON, a single object.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")

	return b.String()
}

// reprompt is appended when a previous response could not be parsed.
const reprompt = "\nYour previous response was not a single valid JSON object with the fields date, category, amount, currency. Respond again with ONLY that JSON object and nothing else.\n"
