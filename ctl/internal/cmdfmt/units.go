package cmdfmt

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dsnet/golib/unitconv"
	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
)

// FormatBytes prints n using IEC prefixes unless raw output was requested.
func FormatBytes(n int64) string {
	if viper.GetBool(config.RawKey) {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%sB", unitconv.FormatPrefix(float64(n), unitconv.IEC, 1))
}

// FormatTime prints t in the local time zone, or as unix seconds with raw output. The zero time is
// printed as "-".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	if viper.GetBool(config.RawKey) {
		return strconv.FormatInt(t.Unix(), 10)
	}
	return t.Local().Format(time.DateTime)
}
