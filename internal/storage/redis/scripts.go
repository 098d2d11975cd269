package redis

const (
	// appendEventScript atomically stores one event in its day's sorted set.
	// Members are prefixed with a zero-padded sequence number so that events
	// sharing a timestamp keep their arrival order.
	appendEventScript = `
local day_key = KEYS[1]     -- limitliner:events:{day}
local days_set = KEYS[2]    -- limitliner:events:days
local seq_key = KEYS[3]     -- limitliner:events:seq

local day = ARGV[1]
local timestamp = tonumber(ARGV[2])
local payload = ARGV[3]

local seq = tostring(redis.call('INCR', seq_key))
local member = string.rep('0', 20 - string.len(seq)) .. seq .. '|' .. payload

redis.call('ZADD', day_key, timestamp, member)
redis.call('SADD', days_set, day)

return seq
`

	// upsertAppScript atomically updates an app and the app index
	upsertAppScript = `
local app_key = KEYS[1]     -- limitliner:app:{id}
local apps_set = KEYS[2]    -- limitliner:apps

redis.call('HSET', app_key,
  'id', ARGV[1],
  'display_name', ARGV[2],
  'is_system', ARGV[3],
  'icon', ARGV[4],
  'updated_at', ARGV[5]
)
redis.call('SADD', apps_set, ARGV[1])

return 'OK'
`

	// upsertSettingScript atomically updates an app setting and the settings index
	upsertSettingScript = `
local setting_key = KEYS[1]   -- limitliner:setting:{appID}
local settings_set = KEYS[2]  -- limitliner:settings

redis.call('HSET', setting_key,
  'app_id', ARGV[1],
  'daily_limit_millis', ARGV[2],
  'muted', ARGV[3],
  'updated_at', ARGV[4]
)
redis.call('SADD', settings_set, ARGV[1])

return 'OK'
`
)
