package structurer

import (
	"fmt"
	"strings"
)

// Output formats understood by DefaultPrompt and ParseResponse.
const (
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatTable = "table"
)

var defaultPrompts = map[string]string{
	FormatJSON: `You are a data structuring expert. Your task is to convert unstructured text into well-structured JSON data.

Guidelines:
1. Identify key entities, relationships, and data points in the text
2. Create a logical JSON structure with appropriate keys
3. Use consistent data types (strings, numbers, booleans, arrays, objects)
4. Handle missing or unclear data gracefully
5. Preserve important information while organizing it logically
6. Use descriptive key names that clearly indicate the data content

Output only valid JSON without any additional text or explanations.`,
	FormatCSV: `You are a data structuring expert. Your task is to convert unstructured text into CSV format.

Guidelines:
1. Identify the main data entities and their attributes
2. Create appropriate column headers
3. Extract data rows from the text
4. Use commas to separate values
5. Handle missing data with empty fields
6. Ensure the CSV is properly formatted

Output the CSV data with headers on the first line, followed by data rows.`,
	FormatTable: `You are a data structuring expert. Your task is to convert unstructured text into a structured table format.

Guidelines:
1. Identify the main data entities and their attributes
2. Create a clear table structure with headers
3. Extract and organize the data into rows and columns
4. Use consistent formatting
5. Handle missing data appropriately

Output a well-formatted table with clear headers and organized data.`,
}

// DefaultPrompt returns the instructions for format; unknown formats get the
// JSON instructions.
func DefaultPrompt(format string) string {
	if p, ok := defaultPrompts[format]; ok {
		return p
	}
	return defaultPrompts[FormatJSON]
}

// Prompt combines the instructions (custom when non-empty) with text.
func Prompt(text, format, custom string) string {
	base := custom
	if strings.TrimSpace(base) == "" {
		base = DefaultPrompt(format)
	}
	return fmt.Sprintf(`%s

Raw Text to Structure:
%s

Please analyze the above text and convert it to structured data in %s format.
Ensure the output is valid and well-formatted.`, base, text, strings.ToUpper(format))
}

func entitiesPrompt(text string) string {
	return `Extract named entities from the following text and return them as JSON with the following structure:
{
    "persons": ["list of person names"],
    "organizations": ["list of organization names"],
    "locations": ["list of location names"],
    "dates": ["list of dates"],
    "numbers": ["list of important numbers"],
    "emails": ["list of email addresses"],
    "phones": ["list of phone numbers"]
}

Text to analyze:
` + text + `

Return only valid JSON.`
}

func classifyPrompt(text string) string {
	return `Classify the following document and return the result as JSON:
{
    "document_type": "type of document (e.g., invoice, report, email, form, etc.)",
    "confidence": "confidence level (0-1)",
    "key_topics": ["list of main topics"],
    "language": "detected language",
    "sentiment": "overall sentiment (positive, negative, neutral)"
}

Document text:
` + text + `

Return only valid JSON.`
}

func summaryPrompt(text string, maxWords int) string {
	return fmt.Sprintf("Create a concise summary of the following text in %d words or less:\n\n%s\n\nSummary:", maxWords, text)
}
