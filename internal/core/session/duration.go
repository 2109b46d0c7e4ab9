package session

import "time"

// ComputeDuration は start から end までの経過秒数を返します。
// 端数は切り捨て、end が start より前の場合は ErrInvalidInterval を返します。
func ComputeDuration(start, end time.Time) (int64, error) {
	elapsed := end.Sub(start)
	if elapsed < 0 {
		return 0, ErrInvalidInterval
	}
	return int64(elapsed / time.Second), nil
}
