package redisstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"pkg.aura.care/moodfeed/internal/storage/storagetest"
)

func TestContract(t *testing.T) {
	addr := os.Getenv("MOODFEED_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MOODFEED_TEST_REDIS_ADDR not set")
	}

	s, err := Connect(context.Background(), zap.NewNop(), Config{Address: addr})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	storagetest.Run(t, s, fmt.Sprintf("test-%d/", time.Now().UnixNano()))
}

func TestKeys(t *testing.T) {
	if got := docKey("public_mood_logs/e1/likes", "u1"); got != "doc:public_mood_logs/e1/likes:u1" {
		t.Errorf("docKey = %q", got)
	}
	if got := colKey("public_mood_logs"); got != "col:public_mood_logs" {
		t.Errorf("colKey = %q", got)
	}
}
