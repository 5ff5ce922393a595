package actor

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/styrainc/rtvolume/internal/leakcheck"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, leakcheck.Defaults...)
}
