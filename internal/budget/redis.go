package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var takeScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
  return {n, 0}
end
n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {n, 1}
`)

// Redis shares counters between server instances. The check and the
// increment run as one script.
type Redis struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRedis(rdb *redis.Client, window time.Duration) *Redis {
	return &Redis{rdb: rdb, window: window}
}

func (r *Redis) Take(ctx context.Context, key string, max int) (int, bool, error) {
	res, err := takeScript.Run(ctx, r.rdb, []string{key}, max, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected script reply %v", res)
	}
	return int(res[0]), res[1] == 1, nil
}
