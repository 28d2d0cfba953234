//go:build !windows

package detector

import "context"

// noopMetadataAdapter is installed on non-Windows hosts, where there is no
// PE executable to read version resources from. The detector still runs
// end to end; it simply has fewer query strings for Phase 2.
type noopMetadataAdapter struct{}

// NewDefaultMetadataAdapter returns the platform's metadata adapter.
func NewDefaultMetadataAdapter() MetadataAdapter {
	return noopMetadataAdapter{}
}

func (noopMetadataAdapter) Read(ctx context.Context, exePath string) (Metadata, error) {
	return Metadata{}, nil
}
