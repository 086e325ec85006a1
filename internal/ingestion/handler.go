package ingestion

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	httperr "github.com/aevon-lab/rollup/internal/core/errors"
	"github.com/aevon-lab/rollup/internal/schema/protobuf"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgInvalidRecord  = "Invalid record"
	msgEmptyBatch     = "Request must contain at least one record"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// IngestHandler handles POST /v1/records. The body is a JSON array of records;
// the whole batch is rejected if any record fails to decode.
func (s *Service) IngestHandler(c *gin.Context) {
	body, err := s.readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}

	records, err := s.decodeRecords(body)
	if err != nil {
		writeError(c, err)
		return
	}

	batchID := uuid.NewString()
	s.sink.AddRange(records)

	slog.Info("[Ingestion] Accepted batch",
		"batch_id", batchID,
		"records", len(records),
		"payload_size", len(body))

	c.JSON(http.StatusAccepted, gin.H{
		"status":   "accepted",
		"batch_id": batchID,
		"records":  len(records),
	})
}

// readBody reads the request body up to the configured limit.
func (s *Service) readBody(c *gin.Context) ([]byte, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("[Ingestion] Failed to read request body", "error", err)
		return nil, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("[Ingestion] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}
	return bodyBytes, nil
}

// decodeRecords decodes the batch and maps decode failures to 400 responses.
func (s *Service) decodeRecords(body []byte) ([]protobuf.Record, *ingestionError) {
	records, err := s.decoder.DecodeBatch(body)
	if err != nil {
		var recErr *protobuf.RecordError
		if errors.As(err, &recErr) {
			slog.Warn("[Ingestion] Invalid record", "index", recErr.Index, "error", recErr.Err)
			return nil, &ingestionError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpInvalidRecordError,
				message:    msgInvalidRecord,
				details: map[string]interface{}{
					"index": recErr.Index,
					"error": recErr.Err.Error(),
				},
			}
		}

		slog.Warn("[Ingestion] Invalid JSON body received", "error", err, "payload_size", len(body))
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	if len(records) == 0 {
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidRecordError,
			message:    msgEmptyBatch,
		}
	}
	return records, nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
