// Package todo implements the CRUD handlers of the todo resource. Every
// handler counts its operation in todo_operations_total before touching the
// store and counts <operation>_error when the store fails.
package todo

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/remiges-tech/todomon/internal/store"
	"github.com/remiges-tech/todomon/router"
	"github.com/remiges-tech/todomon/service"
	"github.com/remiges-tech/todomon/wscutils"
)

// Operation label values of todo_operations_total.
const (
	OpRead   = "read"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ErrorOp is the label used when op fails, e.g. "create_error".
func ErrorOp(op string) string {
	return op + "_error"
}

type CreateTodoRequest struct {
	Text string `json:"text" validate:"required"`
}

type UpdateTodoRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

type DeleteTodoResponse struct {
	Message string `json:"message"`
}

// RegisterRoutes registers the todo routes on s under /todos.
func RegisterRoutes(s *service.Service) error {
	g := s.CreateGroup("/todos")
	routes := []struct {
		method  string
		path    string
		handler service.HandlerFunc
	}{
		{http.MethodGet, "", HandleListTodos},
		{http.MethodPost, "", HandleCreateTodo},
		{http.MethodPut, "/:id", HandleUpdateTodo},
		{http.MethodDelete, "/:id", HandleDeleteTodo},
	}
	for _, r := range routes {
		if err := g.RegisterRoute(r.method, r.path, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// HandleListTodos returns every todo, newest first.
func HandleListTodos(c *gin.Context, s *service.Service) {
	countOperation(c, s, OpRead)

	todos, err := s.Store.List(c.Request.Context())
	if err != nil {
		failOperation(c, s, OpRead, err)
		return
	}
	c.JSON(http.StatusOK, todos)
}

// HandleCreateTodo creates a todo from {"text": "..."}. Surrounding
// whitespace is trimmed and a blank text is rejected.
func HandleCreateTodo(c *gin.Context, s *service.Service) {
	var req CreateTodoRequest
	if err := wscutils.BindJSON(c, &req); err != nil {
		return
	}
	countOperation(c, s, OpCreate)

	req.Text = strings.TrimSpace(req.Text)
	if fieldErrors := wscutils.WscValidate(req); len(fieldErrors) > 0 {
		wscutils.SendErrorResponse(c, http.StatusBadRequest, wscutils.MsgTextRequired)
		return
	}

	todo, err := s.Store.Create(c.Request.Context(), req.Text)
	if err != nil {
		failOperation(c, s, OpCreate, err)
		return
	}
	s.LogHarbour.WithModule("todo").WithOp(OpCreate).WithInstanceId(todo.ID).
		Debug0().LogActivity("todo created", map[string]any{"request_id": requestID(c)})
	c.JSON(http.StatusOK, todo)
}

// HandleUpdateTodo applies a partial update {"text"?, "completed"?}.
func HandleUpdateTodo(c *gin.Context, s *service.Service) {
	var req UpdateTodoRequest
	if err := wscutils.BindJSON(c, &req); err != nil {
		return
	}
	countOperation(c, s, OpUpdate)

	if req.Text != nil {
		trimmed := strings.TrimSpace(*req.Text)
		if trimmed == "" {
			wscutils.SendErrorResponse(c, http.StatusBadRequest, wscutils.MsgTextRequired)
			return
		}
		req.Text = &trimmed
	}

	id := c.Param("id")
	todo, err := s.Store.Update(c.Request.Context(), id, store.Patch{Text: req.Text, Completed: req.Completed})
	if errors.Is(err, store.ErrNotFound) {
		notFound(c, s, OpUpdate, id)
		return
	}
	if err != nil {
		failOperation(c, s, OpUpdate, err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

// HandleDeleteTodo removes a todo.
func HandleDeleteTodo(c *gin.Context, s *service.Service) {
	countOperation(c, s, OpDelete)

	id := c.Param("id")
	err := s.Store.Delete(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(c, s, OpDelete, id)
		return
	}
	if err != nil {
		failOperation(c, s, OpDelete, err)
		return
	}
	c.JSON(http.StatusOK, DeleteTodoResponse{Message: "Todo deleted"})
}

func countOperation(c *gin.Context, s *service.Service, op string) {
	if err := s.Metrics.TodoOperations.Inc(op); err != nil {
		s.LogHarbour.WithModule("todo").WithOp(op).Error(err).
			LogActivity("InstrumentationFailure", map[string]any{"request_id": requestID(c)})
	}
}

func notFound(c *gin.Context, s *service.Service, op, id string) {
	s.LogHarbour.WithModule("todo").WithOp(op).WithInstanceId(id).
		Warn().LogActivity("todo not found", map[string]any{"request_id": requestID(c)})
	wscutils.SendErrorResponse(c, http.StatusNotFound, wscutils.MsgTodoNotFound)
}

// failOperation counts the failure, logs it with a stack trace and answers 500.
func failOperation(c *gin.Context, s *service.Service, op string, err error) {
	countOperation(c, s, ErrorOp(op))
	s.LogHarbour.WithModule("todo").WithOp(op).Error(err).
		LogActivity("todo operation failed", map[string]any{
			"request_id": requestID(c),
			"error":      err.Error(),
			"stack":      string(debug.Stack()),
		})
	wscutils.SendErrorResponse(c, http.StatusInternalServerError, wscutils.MsgServerError)
}

func requestID(c *gin.Context) string {
	return c.GetString(router.CtxKeyRequestID)
}
