package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound reports that no object exists at the requested URL.
var ErrNotFound = errors.New("artifact not found")

// IsNotFound reports whether err is a missing-object error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Store reads and writes opaque JSON documents at well-known URLs. The
// orchestrator never interprets object contents beyond the STAC layer; it
// only derives keys from (jobID, workItemID, stepIndex, batchID).
type Store interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Put(ctx context.Context, url string, body []byte) error
	List(ctx context.Context, prefixURL string) ([]string, error)
}

// OutputsURL is the path of one file in a work item's staging directory.
func OutputsURL(jobID uuid.UUID, workItemID int64, file string) string {
	return fmt.Sprintf("/tmp/%s/%d/outputs/%s", jobID, workItemID, file)
}

// BatchCatalogURL is the location of a sealed batch's aggregation catalog.
func BatchCatalogURL(bucket string, jobID uuid.UUID, stepIndex, batchID int) string {
	return fmt.Sprintf("s3://%s/%s/batches/%d/%d/catalog.json", bucket, jobID, stepIndex, batchID)
}
