package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes a commented default configuration to path. An
// existing file is kept unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(Template), 0o600)
}

// Template mirrors server.DefaultServiceConfig.
const Template = `# node label used in logs and metrics
node_id = "amqpwire.local"
listen_addr = ":5672"
# empty disables the admin http server
admin_addr = "127.0.0.1:15672"
cors_origins = ["http://localhost:3000"]
closed_retention = "5m"
closed_capacity = 1024

[session]
buffer_size = 131072
# largest frame either side may send, frame overhead included
frame_max = 131072
read_timeout = "15s"
write_timeout = "15s"
heartbeat_interval = "5s"
connect_timeout = "5s"
max_connect_attempts = 5

[session.backoff]
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = true

[log]
# empty keeps logs on the console only
path = ""
max_size_mb = 100
max_backups = 3
max_age_days = 28
compress = false
`
