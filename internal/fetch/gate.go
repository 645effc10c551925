package fetch

import (
	"errors"
	"fmt"
	"os"
)

// OversizeError is the delivery gate's definitive rejection: the file was
// larger than the transport allows, has already been deleted, and must not
// be sent.
type OversizeError struct {
	Size  int64
	Limit int64
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("file size %d exceeds transport limit %d", e.Size, e.Limit)
}

// Gate checks a completed download against the transport size limit. An
// oversized file is deleted and an *OversizeError returned; otherwise the
// result passes through unchanged.
func (o *Orchestrator) Gate(res *Result) error {
	if res.Size <= o.sizeLimit {
		return nil
	}
	o.log.Infow("rejecting oversized file", "path", res.Path, "size", res.Size, "limit", o.sizeLimit)
	o.Cleanup(res.Path)
	return &OversizeError{Size: res.Size, Limit: o.sizeLimit}
}

// IsOversize reports whether err is the gate's rejection.
func IsOversize(err error) bool {
	var oe *OversizeError
	return errors.As(err, &oe)
}

// Cleanup deletes a local artifact, best-effort: failures are logged and
// never escalated, matching the uploader's cleanup contract.
func (o *Orchestrator) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		o.log.Warnw("failed to delete local file", "path", path, "error", err)
	}
}
