package models

// BaseResponse is the envelope of every API response
type BaseResponse struct {
	IsSuccess bool     `json:"is_success"`
	Message   string   `json:"message"`
	Data      any      `json:"data,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// TimelineInterpretation is the data of the interpretation endpoint
type TimelineInterpretation struct {
	Interpretation string `json:"interpretation"`
	Language       string `json:"language"`
	Generated      bool   `json:"generated"`
}
