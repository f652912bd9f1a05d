package platform

import (
	"fmt"

	"github.com/guildport/guildport/internal/imaging"
	"github.com/guildport/guildport/internal/migrate"
)

// Upload ceilings, checked before any network call so oversized payloads
// fail fast without burning rate-limit budget.
const (
	MaxIconBytes    = 10 << 20
	MaxAvatarBytes  = 10 << 20
	MaxBannerBytes  = 10 << 20
	MaxEmojiBytes   = 256 << 10
	MaxStickerBytes = 512 << 10
)

// preparePayload enforces an upload ceiling on an image payload. Static
// images over the limit are downscaled; animated ones cannot be, so they
// fail with payload_too_large.
func preparePayload(kind migrate.EntityKind, name string, data []byte, limit int) ([]byte, error) {
	if len(data) <= limit {
		return data, nil
	}
	shrunk, err := imaging.ShrinkToFit(data, limit)
	if err != nil {
		return nil, &migrate.Failure{
			Code:    migrate.CodePayload,
			Entity:  fmt.Sprintf("%s %q", kind, name),
			Message: fmt.Sprintf("%s exceeds the %s limit and could not be downscaled: %v", migrate.FormatBytes(int64(len(data))), migrate.FormatBytes(int64(limit)), err),
		}
	}
	return shrunk, nil
}
