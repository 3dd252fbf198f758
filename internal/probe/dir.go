package probe

import (
	"context"
	"fmt"
	"os"

	"github.com/patrolhq/patrol/internal/types"
)

// DirectoryPresence checks that a required directory exists.
type DirectoryPresence struct {
	// Path is the directory that must exist
	Path string
}

func (d *DirectoryPresence) Name() string {
	return fmt.Sprintf("directory-presence[%s]", d.Path)
}

func (d *DirectoryPresence) Check(ctx context.Context) (*types.Finding, error) {
	info, err := os.Stat(d.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.Finding{
				Type:        "directory_missing",
				Severity:    types.SeverityHigh,
				Description: fmt.Sprintf("required directory %s does not exist", d.Path),
			}, nil
		}
		return nil, fmt.Errorf("stat %s: %w", d.Path, err)
	}

	if !info.IsDir() {
		return &types.Finding{
			Type:        "directory_missing",
			Severity:    types.SeverityHigh,
			Description: fmt.Sprintf("%s exists but is not a directory", d.Path),
		}, nil
	}
	return nil, nil
}
