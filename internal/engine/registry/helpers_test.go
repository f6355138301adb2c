package registry

import "github.com/aishacrm/braid/infrastructure/logging"

func testLogger() *logging.Logger {
	return logging.New("registry-test", "error", "json")
}
