package cache

import "fmt"

func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func RateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}
