package health

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/collabodraw/live/internal/configure"
	"github.com/collabodraw/live/internal/global"
	"github.com/collabodraw/live/internal/svc/broadcast"
	"github.com/collabodraw/live/internal/testutil"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	config := &configure.Config{}
	config.Health.Enabled = true
	config.Health.Bind = "127.0.1.1:3000"

	gCtx, cancel := global.WithCancel(global.New(context.Background(), config))
	gCtx.Inst().Hub = broadcast.NewHub()

	done := New(gCtx)

	time.Sleep(time.Millisecond * 50)

	resp, err := http.DefaultClient.Get("http://127.0.1.1:3000")
	testutil.IsNil(t, err, "No error")

	var status Status
	testutil.IsNil(t, json.NewDecoder(resp.Body).Decode(&status), "decode body")
	_ = resp.Body.Close()

	testutil.Assert(t, http.StatusOK, resp.StatusCode, "response code")
	testutil.Assert(t, "", status.Nats, "nats not configured")
	testutil.Assert(t, uint64(0), status.Dropped, "nothing dropped")

	cancel()

	<-done
}
