package utils

import (
	"strings"
	"time"

	"github.com/ararog/timeago"
)

// TimeAgo renders a timestamp as a lowercase "x minutes ago" string for
// contact previews.
func TimeAgo(t time.Time) string {
	got, _ := timeago.TimeAgoWithTime(time.Now(), t)
	return strings.ToLower(got)
}
