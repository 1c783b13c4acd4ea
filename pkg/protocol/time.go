package protocol

import "time"

func unixNanoToTime(nsec int64) time.Time {
	return time.Unix(0, nsec).UTC()
}
