package response

import (
	"encoding/json"
	"net/http"
	"time"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
	RequestID string      `json:"requestId,omitempty"`
}

// APIError 统一错误结构
type APIError struct {
	Type    string      `json:"type"`
	Details interface{} `json:"details"`
	Path    string      `json:"path,omitempty"`
}

func write(w http.ResponseWriter, code int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp.Code = code
	resp.Timestamp = time.Now().UnixMilli()
	if id := w.Header().Get("X-Request-ID"); id != "" {
		resp.RequestID = id
	}
	json.NewEncoder(w).Encode(resp)
}

// Success 返回成功响应
func Success(w http.ResponseWriter, data interface{}, message string) {
	SuccessWithCode(w, data, message, http.StatusOK)
}

// SuccessWithCode 返回自定义状态码的成功响应
func SuccessWithCode(w http.ResponseWriter, data interface{}, message string, code int) {
	write(w, code, APIResponse{Message: message, Data: data})
}

// Created 返回创建成功响应
func Created(w http.ResponseWriter, data interface{}, message string) {
	if message == "" {
		message = "resource created"
	}
	SuccessWithCode(w, data, message, http.StatusCreated)
}

// Error 返回错误响应
func Error(w http.ResponseWriter, message string, code int) {
	ErrorWithDetails(w, message, code, nil, "")
}

// ErrorWithDetails 返回带详细信息的错误响应
func ErrorWithDetails(w http.ResponseWriter, message string, code int, details interface{}, errType string) {
	if errType == "" {
		switch code {
		case http.StatusBadRequest:
			errType = "INVALID_REQUEST"
		case http.StatusNotFound:
			errType = "NOT_FOUND"
		case http.StatusMethodNotAllowed:
			errType = "METHOD_NOT_ALLOWED"
		case http.StatusUnprocessableEntity:
			errType = "VALIDATION_ERROR"
		case http.StatusInternalServerError:
			errType = "INTERNAL_SERVER_ERROR"
		case http.StatusServiceUnavailable:
			errType = "SERVICE_UNAVAILABLE"
		default:
			errType = "UNKNOWN_ERROR"
		}
	}
	write(w, code, APIResponse{
		Message: message,
		Error: &APIError{
			Type:    errType,
			Details: details,
		},
	})
}

// ValidationError 返回验证错误响应
func ValidationError(w http.ResponseWriter, details string, field string) {
	ErrorWithDetails(w, "input validation failed", http.StatusUnprocessableEntity, map[string]interface{}{
		"field":   field,
		"message": details,
	}, "VALIDATION_ERROR")
}

// ServerError 返回服务器内部错误响应
func ServerError(w http.ResponseWriter, err error) {
	var details interface{}
	if err != nil {
		details = err.Error()
	}
	ErrorWithDetails(w, "internal server error", http.StatusInternalServerError, details, "INTERNAL_SERVER_ERROR")
}

// StorageError is a ServerError whose type tells operators the datastore failed.
func StorageError(w http.ResponseWriter, err error) {
	ErrorWithDetails(w, "storage failure, the submission was not saved", http.StatusInternalServerError, err.Error(), "STORAGE_ERROR")
}

// NotFound 返回资源未找到响应
func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "resource not found"
	}
	Error(w, message, http.StatusNotFound)
}

// BadRequest 返回错误请求响应
func BadRequest(w http.ResponseWriter, message string, details interface{}) {
	ErrorWithDetails(w, message, http.StatusBadRequest, details, "BAD_REQUEST")
}
