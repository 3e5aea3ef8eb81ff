package port

import "context"

// Zipper packages the numbered images of an images render into one archive.
type Zipper interface {
	CreateZip(ctx context.Context, filePaths []string, outputPath string) error
}
