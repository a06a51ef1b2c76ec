package pipeline

import (
	"github.com/sells-group/tradedocs/internal/model"
	"github.com/sells-group/tradedocs/internal/resilience"
)

// validate checks the uploaded file against the accepted type list and
// size limit. Failures are terminal: the record goes straight to error
// with no retry and downstream stages never run.
func (c *Controller) validate(rec *model.IngestionRecord) error {
	if !c.acceptedType(rec.FileType) {
		return resilience.NewValidationError("unsupported file type " + rec.FileType)
	}

	maxBytes := c.cfg.Pipeline.MaxFileSizeMB * 1024 * 1024
	if maxBytes > 0 && rec.SizeBytes > maxBytes {
		return resilience.NewValidationError("file exceeds size limit")
	}
	if rec.SizeBytes == 0 {
		return resilience.NewValidationError("empty file")
	}
	return nil
}

func (c *Controller) acceptedType(ext string) bool {
	accepted := c.cfg.Pipeline.AcceptedFileTypes
	if len(accepted) == 0 {
		accepted = []string{"pdf", "png", "jpg", "jpeg", "tiff", "txt"}
	}
	for _, a := range accepted {
		if a == ext {
			return true
		}
	}
	return false
}
