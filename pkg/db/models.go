package db

import "time"

// ContextRecord represents a row in the usecase_contexts table.
type ContextRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Input      []byte    `json:"input,omitempty"`
	Response   []byte    `json:"response,omitempty"`
	IsDefault  bool      `json:"is_default"`
	Revision   int       `json:"revision"`
	Created    time.Time `json:"created"`
	CreatedBy  string    `json:"created_by"`
	Modified   time.Time `json:"modified"`
	ModifiedBy string    `json:"modified_by"`
}

// UseCaseRecord represents a row in the usecase_configurations table.
type UseCaseRecord struct {
	ID          string    `json:"id"`
	UseCase     string    `json:"use_case"`
	Description *string   `json:"description,omitempty"`
	Input       []byte    `json:"input,omitempty"`
	Response    []byte    `json:"response,omitempty"`
	RequestType *string   `json:"request_type,omitempty"`
	Revision    int       `json:"revision"`
	Created     time.Time `json:"created"`
	CreatedBy   string    `json:"created_by"`
	Modified    time.Time `json:"modified"`
	ModifiedBy  string    `json:"modified_by"`
}
