package api

import (
	"fmt"
	"net/http"

	"github.com/amonks/taskgraph/schedule"
	"github.com/gin-gonic/gin"
)

// StatusFor maps an error to its HTTP status by kind.
func StatusFor(err error) int {
	switch schedule.KindOf(err) {
	case schedule.ErrNotFound:
		return http.StatusNotFound
	case schedule.ErrInvalidArgument:
		return http.StatusBadRequest
	case schedule.ErrPermissionDenied:
		return http.StatusForbidden
	case schedule.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	s.writeError(c, StatusFor(err), err)
}

func (s *Server) writeError(c *gin.Context, status int, err error) {
	s.logger.Printf("request %s %s failed (%d): %v", c.Request.Method, c.Request.URL.Path, status, err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}

var errBadBody = schedule.NewError(schedule.ErrInvalidArgument, "invalid request body")

func badBody(err error) error {
	return fmt.Errorf("%w: %v", errBadBody, err)
}
