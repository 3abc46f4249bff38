package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the process-wide line logger. Request logs and audit events
// both go through it so output stays one JSON object per line.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		// bare writer, no prefix or flags; every line is already structured
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest marshals the entry map and writes it as a single log line.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log entry not serializable"}`)
		return
	}
	Logger().Println(string(data))
}
