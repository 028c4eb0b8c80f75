package dto

// ErrorResponse — стандартный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse — стандартный успешный ответ.
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// CheckExpiredResponse — итог зачистки просроченных голосований.
type CheckExpiredResponse struct {
	Resolved int `json:"resolved"`
}
