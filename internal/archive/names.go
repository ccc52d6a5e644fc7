package archive

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const userFileStamp = "20060102T150405.000000"

// UserFileName names the per-recipient file split out of row idx of
// batchFile. The name is unique per import, so a later batch published into
// the same folder never overwrites a file an active record still points to.
func UserFileName(recipientID int64, batchFile string, idx int, at time.Time) string {
	return fmt.Sprintf("%d_%s_%d_%s.csv", recipientID, at.UTC().Format(userFileStamp), idx, batchStem(batchFile))
}

// IsUserFileOf reports whether name was produced by UserFileName for
// batchFile.
func IsUserFileOf(name, batchFile string) bool {
	parts := strings.SplitN(name, "_", 4)
	return len(parts) == 4 && parts[3] == batchStem(batchFile)+".csv"
}

func batchStem(batchFile string) string {
	base := filepath.Base(batchFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
