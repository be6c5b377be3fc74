package wscutils

// Error messages returned in the "error" field of a failed response.
const (
	MsgInvalidJSON  = "Invalid JSON"
	MsgTextRequired = "Text is required"
	MsgTodoNotFound = "Todo not found"
	MsgServerError  = "Server error"
)
