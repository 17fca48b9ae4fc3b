package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"

	"github.com/randomizedcoder/go-abr-harness/internal/logging"
)

func TestConsoleText(t *testing.T) {
	testCases := []struct {
		name string
		args []*runtime.RemoteObject
		want string
	}{
		{
			name: "string",
			args: []*runtime.RemoteObject{{Type: runtime.TypeString, Value: []byte(`"sessionID = 4f2a"`)}},
			want: "sessionID = 4f2a",
		},
		{
			name: "mixed",
			args: []*runtime.RemoteObject{
				{Type: runtime.TypeString, Value: []byte(`"bitrate"`)},
				{Type: runtime.TypeNumber, Value: []byte(`2400000`)},
			},
			want: "bitrate 2400000",
		},
		{
			name: "object description",
			args: []*runtime.RemoteObject{{Type: runtime.TypeObject, Description: "MediaError"}},
			want: "MediaError",
		},
		{
			name: "undefined",
			args: []*runtime.RemoteObject{{Type: runtime.TypeUndefined}, nil},
			want: "undefined",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := consoleText(tc.args); got != tc.want {
				t.Errorf("consoleText = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExceptionText(t *testing.T) {
	if got := exceptionText(nil); got != "uncaught exception" {
		t.Errorf("nil details = %q", got)
	}
	d := &runtime.ExceptionDetails{Text: "Uncaught"}
	if got := exceptionText(d); got != "Uncaught" {
		t.Errorf("text only = %q", got)
	}
	d.Exception = &runtime.RemoteObject{Description: "TypeError: player is undefined"}
	if got := exceptionText(d); got != "TypeError: player is undefined" {
		t.Errorf("with exception = %q", got)
	}
}

func TestFindChrome_Configured(t *testing.T) {
	_, err := FindChrome("/nonexistent/chrome-binary")
	if !errors.Is(err, ErrChromeNotFound) {
		t.Errorf("err = %v, want ErrChromeNotFound", err)
	}
}

func TestNewPageRunner_Defaults(t *testing.T) {
	r := NewPageRunner(Config{Stub: "http://localhost/players"})
	if r.logger == nil {
		t.Error("logger should default")
	}
	if r.cfg.SettleTimeout != 30*time.Second {
		t.Errorf("SettleTimeout = %v", r.cfg.SettleTimeout)
	}
	if n := len(r.allocatorOptions()); n <= 3 {
		t.Errorf("allocator options = %d", n)
	}
}

const testPage = `<!DOCTYPE html>
<html><body>
<input type="text" id="sessionID" value="">
<script>
var id = "page-%s";
document.getElementById("sessionID").value = id;
console.log("sessionID = " + id);
console.log("ABR logic = " + new URLSearchParams(location.search).get("customData2"));
console.error("GET /seg1.m4s 404");
</script>
</body></html>`

func TestPageRunner_Run(t *testing.T) {
	chrome, err := FindChrome("")
	if err != nil {
		t.Skip("chrome not available")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/index.php") {
			http.NotFound(w, r)
			return
		}
		backend := strings.Split(strings.Trim(r.URL.Path, "/"), "/")[1]
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, testPage, backend)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := logging.NewLoggerWithWriter(&logs, "text", "debug")
	runner := NewPageRunner(Config{
		Stub:          srv.URL + "/players",
		ChromePath:    chrome,
		Headless:      true,
		Duration:      500 * time.Millisecond,
		SettleTimeout: 20 * time.Second,
		Logger:        logger,
	})
	console := logging.NewConsole("dashjs", logger, true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := runner.Run(ctx, "dashjs", map[string]string{"customData2": "abrBola"}, console)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SessionID != "page-dashjs" {
		t.Errorf("SessionID = %q, want page-dashjs", res.SessionID)
	}
	if !strings.Contains(res.URL, "/players/dashjs/index.php?customData2=abrBola") {
		t.Errorf("URL = %q", res.URL)
	}

	// Console events arrive asynchronously with the page load.
	deadline := time.Now().Add(5 * time.Second)
	for console.CountErrors()["404"] == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if console.CountErrors()["404"] != 1 {
		t.Errorf("console errors = %v, lines = %v", console.CountErrors(), console.RecentLines(10))
	}
}
