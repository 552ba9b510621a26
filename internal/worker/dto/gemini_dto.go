package dto

// GeminiAPIRequest is the request payload for the Gemini generateContent API.
type GeminiAPIRequest struct {
	Contents []Content `json:"contents"`
}

// Content represents the content of a request or response.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is a part of the content.
type Part struct {
	Text string `json:"text"`
}

// GeminiAPIResponse is the response from the Gemini API.
type GeminiAPIResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is a candidate response from the Gemini API.
type Candidate struct {
	Content Content `json:"content"`
}
