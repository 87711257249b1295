// Package source connects ragsync to the external document source.
package source

import (
	"context"

	"github.com/qiao-925/ragsync/internal/repo"
)

// Connector fetches repository content and revision markers.
// Implementations surface network and auth failures as connector errors;
// the pipeline treats those as fatal and does not retry them.
type Connector interface {
	// RevisionMarker returns the source's current revision marker for the
	// branch without materializing a checkout.
	RevisionMarker(ctx context.Context, ref repo.Ref) (string, error)

	// CloneOrUpdate materializes a local checkout of the branch and
	// returns its path together with the checked-out revision marker.
	CloneOrUpdate(ctx context.Context, ref repo.Ref) (localPath string, revision string, err error)
}
