// Package assetpath computes where asset files land inside the working copy.
package assetpath

import (
	"fmt"
	"path/filepath"

	"github.com/mkarpov/chronicle/internal/types"
)

// TargetPath maps an asset to its deterministic location:
//
//	<assetsRoot>/<YYYY-MM>/<DD>/<event id>/<basename of source>
//
// Date parts come from the event date in UTC, zero-padded. The source
// basename is preserved byte for byte; two assets of one event sharing a
// basename collide, which is a caller error.
func TargetPath(assetsRoot string, asset types.Asset) string {
	date := asset.Event.Date.UTC()
	return filepath.Join(
		assetsRoot,
		fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month())),
		fmt.Sprintf("%02d", date.Day()),
		asset.Event.ID.Identifier,
		filepath.Base(asset.File.Path()),
	)
}
