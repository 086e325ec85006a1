package ingestion

import (
	"github.com/aevon-lab/rollup/internal/schema/protobuf"
	"github.com/gin-gonic/gin"
)

// Sink receives decoded record batches.
type Sink interface {
	AddRange(records []protobuf.Record)
}

// Decoder turns a request body into records.
type Decoder interface {
	DecodeBatch(data []byte) ([]protobuf.Record, error)
}

type Service struct {
	decoder          Decoder
	sink             Sink
	maxBodySizeBytes int
}

func NewService(decoder Decoder, sink Sink, maxBodySizeMB int) *Service {
	if decoder == nil {
		panic("ingestion: decoder must not be nil")
	}
	if sink == nil {
		panic("ingestion: sink must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		decoder:          decoder,
		sink:             sink,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/records", s.IngestHandler)
}
