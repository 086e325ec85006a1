package projection

import (
	"errors"
	"net/http"
	"time"

	httperr "github.com/aevon-lab/rollup/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/aggregates/:granularity", s.HandleQueryAggregates)
	r.GET("/v1/policy", s.HandlePolicy)
}

// HandleQueryAggregates handles GET /v1/aggregates/:granularity
// Query parameters: at (optional, RFC 3339). Without at, every bucket is listed.
func (s *Service) HandleQueryAggregates(c *gin.Context) {
	var query struct {
		At time.Time `form:"at" time_format:"2006-01-02T15:04:05Z07:00"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	granularity := c.Param("granularity")

	var (
		resp interface{}
		err  error
	)
	if c.Query("at") != "" {
		resp, err = s.BucketAt(c.Request.Context(), granularity, query.At)
	} else {
		resp, err = s.ListBuckets(c.Request.Context(), granularity)
	}
	if err != nil {
		writeQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandlePolicy handles GET /v1/policy
func (s *Service) HandlePolicy(c *gin.Context) {
	c.JSON(http.StatusOK, s.Policy())
}

func writeQueryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid aggregate query",
			Details:   err.Error(),
		})
	case errors.Is(err, ErrBucketNotFound):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFoundError,
			Message:   "No records in the requested bucket",
			Details:   err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query aggregates",
			Details:   err.Error(),
		})
	}
}
