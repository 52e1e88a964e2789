package domain

import "time"

// Типы операций журнала
const (
	OperationSync    = "sync"
	OperationWebhook = "webhook"
	OperationAPICall = "api_call"
	OperationError   = "error"
	OperationTest    = "test"
)

// Направления операций
const (
	DirectionInbound       = "inbound"
	DirectionOutbound      = "outbound"
	DirectionBidirectional = "bidirectional"
)

// Итоги операций
const (
	LogStatusSuccess = "success"
	LogStatusFailed  = "failed"
	LogStatusPartial = "partial"
	LogStatusPending = "pending"
)

// IntegrationLog - неизменяемая запись журнала операций интеграции
type IntegrationLog struct {
	ID               string    `db:"id" json:"id"`
	IntegrationID    string    `db:"integration_id" json:"integration_id"`
	OperationType    string    `db:"operation_type" json:"operation_type"`
	OperationName    string    `db:"operation_name" json:"operation_name"`
	Direction        string    `db:"direction" json:"direction"`
	Status           string    `db:"status" json:"status"`
	RequestPayload   Payload   `db:"request_payload" json:"request_payload"`
	ResponsePayload  Payload   `db:"response_payload" json:"response_payload"`
	ErrorMessage     string    `db:"error_message" json:"error_message,omitempty"`
	ErrorCode        string    `db:"error_code" json:"error_code,omitempty"`
	ProcessingTimeMS int64     `db:"processing_time_ms" json:"processing_time_ms"`
	RecordsProcessed int       `db:"records_processed" json:"records_processed"`
	RecordsSuccess   int       `db:"records_success" json:"records_success"`
	RecordsFailed    int       `db:"records_failed" json:"records_failed"`
	Metadata         JSONMap   `db:"metadata" json:"metadata"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// LogFilter - фильтр выборки журнала
type LogFilter struct {
	OperationType string
	Status        string
}

// LogStats - сводка журнала интеграции по итогам
type LogStats struct {
	Total           int        `json:"total"`
	Success         int        `json:"success"`
	Failed          int        `json:"failed"`
	Partial         int        `json:"partial"`
	Pending         int        `json:"pending"`
	AvgProcessingMS float64    `json:"avg_processing_ms"`
	LastAt          *time.Time `json:"last_at"`
}
