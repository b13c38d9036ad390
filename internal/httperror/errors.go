package httperror

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/park285/child-safety-server-go/internal/audit"
	"github.com/park285/child-safety-server-go/internal/flagstore"
	"github.com/park285/child-safety-server-go/internal/safety"
)

// ErrorCode 는 API 오류 코드다.
type ErrorCode string

const (
	// ErrorCodeInternal 는 내부 오류 코드다.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrorCodeValidation 는 검증 오류 코드다.
	ErrorCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrorCodeInvalidInput 는 입력 오류 코드다.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorCodeUnauthorized 는 인증 오류 코드다.
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrorCodeHTTPRateLimit 는 요청 제한 오류 코드다.
	ErrorCodeHTTPRateLimit ErrorCode = "HTTP_RATE_LIMIT"
	// ErrorCodeClassifierNotConfigured 는 분류 모델 자격 증명 누락 코드다.
	ErrorCodeClassifierNotConfigured ErrorCode = "CLASSIFIER_NOT_CONFIGURED"
	// ErrorCodeFlagStoreDisabled 는 플래그 저장소 비활성 코드다.
	ErrorCodeFlagStoreDisabled ErrorCode = "FLAG_STORE_DISABLED"
	// ErrorCodeAuditDisabled 는 감사 DB 비활성 코드다.
	ErrorCodeAuditDisabled ErrorCode = "AUDIT_DISABLED"
	// ErrorCodeTimeout 는 처리 시간 초과 코드다.
	ErrorCodeTimeout ErrorCode = "TIMEOUT"
)

// ErrorResponse 는 API 오류 응답 본문이다.
type ErrorResponse struct {
	ErrorCode string         `json:"error_code"`
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	RequestID *string        `json:"request_id"`
	Details   map[string]any `json:"details"`
}

// ClassifyResponse 는 분류 엔드포인트의 오류 응답이다.
// 오류 상황에서도 폴백 결과 필드를 함께 담는다.
type ClassifyResponse struct {
	safety.ClassificationResult
	ErrorResponse
}

// Error 는 내부 표준 오류 타입이다.
type Error struct {
	Code    ErrorCode
	Status  int
	Type    string
	Message string
	Details map[string]any
}

// Error 는 오류 메시지를 반환한다.
func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, status int, typ string, message string, details map[string]any) *Error {
	return &Error{Code: code, Status: status, Type: typ, Message: message, Details: details}
}

// Response 는 오류를 HTTP 응답으로 변환한다.
func Response(err error, requestID string) (int, ErrorResponse) {
	apiErr := FromError(err)
	if apiErr == nil {
		apiErr = NewInternalError("unknown error")
	}

	var requestIDPtr *string
	if requestID != "" {
		requestIDPtr = &requestID
	}

	return apiErr.Status, ErrorResponse{
		ErrorCode: string(apiErr.Code),
		ErrorType: apiErr.Type,
		Message:   apiErr.Message,
		RequestID: requestIDPtr,
		Details:   apiErr.Details,
	}
}

// FromError 는 오류를 내부 오류 타입으로 변환한다.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, safety.ErrNotConfigured):
		return NewClassifierNotConfigured()
	case errors.Is(err, flagstore.ErrStoreDisabled):
		return newError(ErrorCodeFlagStoreDisabled, http.StatusServiceUnavailable, "FlagStoreDisabledError", "Flag store is disabled", nil)
	case errors.Is(err, audit.ErrDisabled):
		return newError(ErrorCodeAuditDisabled, http.StatusServiceUnavailable, "AuditDisabledError", "Verdict audit is disabled", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrorCodeTimeout, http.StatusGatewayTimeout, "TimeoutError", "Request timed out", nil)
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return NewValidationError(err)
	}

	return NewInternalError(err.Error())
}

// NewInternalError 는 내부 오류를 생성한다.
func NewInternalError(message string) *Error {
	return newError(ErrorCodeInternal, http.StatusInternalServerError, "InternalError", message, nil)
}

// NewClassifierNotConfigured 는 분류 서비스 미설정 오류를 생성한다.
// 콘텐츠 판정이 아닌 운영 오류이므로 500 으로 응답한다.
func NewClassifierNotConfigured() *Error {
	return newError(
		ErrorCodeClassifierNotConfigured,
		http.StatusInternalServerError,
		"ClassifierNotConfiguredError",
		"Safety classification service not configured",
		nil,
	)
}

// NewValidationError 는 검증 오류를 생성한다.
func NewValidationError(err error) *Error {
	return newError(ErrorCodeValidation, http.StatusUnprocessableEntity, "ValidationError", "Input validation failed", validationDetails(err))
}

// NewInvalidInput 는 입력 오류를 생성한다.
func NewInvalidInput(message string) *Error {
	return newError(ErrorCodeInvalidInput, http.StatusBadRequest, "InvalidInputError", message, nil)
}

// NewUnauthorized 는 인증 오류를 생성한다.
func NewUnauthorized(details map[string]any) *Error {
	return newError(ErrorCodeUnauthorized, http.StatusUnauthorized, "UnauthorizedError", "Invalid API key", details)
}

// NewRateLimitExceeded 는 요청 제한 오류를 생성한다.
func NewRateLimitExceeded(details map[string]any) *Error {
	return newError(ErrorCodeHTTPRateLimit, http.StatusTooManyRequests, "HTTPRateLimitExceededError", "Rate limit exceeded", details)
}

// FieldError 는 필드 오류 상세 정보다.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

func validationDetails(err error) map[string]any {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]any{"errors": []FieldError{{Field: "body", Message: err.Error()}}}
	}

	fields := make([]FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: fe.Error(),
			Value:   fe.Value(),
		})
	}
	return map[string]any{"errors": fields}
}
