package repository

import "fmt"

// BuildSentimentPrompt asks the model for a strict JSON sentiment verdict on one news text.
func BuildSentimentPrompt(text string) string {
	return fmt.Sprintf(`You are a financial news sentiment classifier.
Classify the sentiment of the following news text with respect to the stock it mentions.

Respond ONLY with a JSON object, no markdown, in exactly this shape:
{"label": "positive" | "neutral" | "negative", "score": <number between -1 and 1>, "confidence": <number between 0 and 1>}

score is -1 for very negative news, 0 for neutral and 1 for very positive news.

News text:
"""
%s
"""`, text)
}
