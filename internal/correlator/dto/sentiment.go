package dto

// GeminiSentimentResult is the JSON object the model is asked to return.
type GeminiSentimentResult struct {
	Label      string   `json:"label"`
	Score      *float64 `json:"score"`
	Confidence *float64 `json:"confidence"`
}

// ClassifierRequest is sent to an HTTP sentiment classifier.
type ClassifierRequest struct {
	Inputs string `json:"inputs"`
	Model  string `json:"model,omitempty"`
}

// ClassifierPrediction is one label/probability pair returned by the classifier.
type ClassifierPrediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
