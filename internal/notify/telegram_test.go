package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/pipeline"
)

func TestFormatReport(t *testing.T) {
	r := pipeline.Report{
		RunID:           "run-1",
		RecordsScraped:  12,
		New:             2,
		WentInactive:    1,
		PublishedOK:     1,
		PublishedFailed: 1,
		Failures:        []pipeline.Failure{{Identity: "v1:x", Title: "R&D <Lead>", Error: "publish transient (status 429): slow"}},
		Active:          11,
		Inactive:        4,
	}

	text := FormatReport(r)
	assert.True(t, strings.HasPrefix(text, "⚠️ <b>Job sync finished with failures</b>"))
	assert.Contains(t, text, "📊 Scraped 12 | 🆕 New 2 | ♻️ Back 0 | 💤 Gone 1")
	assert.Contains(t, text, "• R&amp;D &lt;Lead&gt;: publish transient (status 429): slow")
	assert.Contains(t, text, "run run-1")

	r = pipeline.Report{RunID: "run-2", FatalError: "extract: listings container \"main\" not found"}
	text = FormatReport(r)
	assert.Contains(t, text, "❌ <b>Job sync failed</b>")
	assert.Contains(t, text, "<code>extract: listings container &#34;main&#34; not found</code>")
}

func TestFormatReport_CapsFailures(t *testing.T) {
	var r pipeline.Report
	for i := 0; i < 25; i++ {
		r.Failures = append(r.Failures, pipeline.Failure{Title: fmt.Sprintf("job %d", i), Error: "x"})
	}
	r.PublishedFailed = 25
	text := FormatReport(r)
	assert.Equal(t, maxFailuresListed, strings.Count(text, "• "))
	assert.Contains(t, text, "… and 15 more")
}

func TestTelegramNotify(t *testing.T) {
	var mu sync.Mutex
	var sent []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"jobs","username":"jobs_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			mu.Lock()
			sent = append(sent, r.FormValue("text"))
			mu.Unlock()
			assert.Equal(t, "-100", r.FormValue("chat_id"))
			assert.Equal(t, "HTML", r.FormValue("parse_mode"))
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":-100,"type":"group"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tg, err := newTelegram("tok", srv.URL+"/bot%s/%s", -100, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, tg.Notify(context.Background(), pipeline.Report{RunID: "quiet"}))
	require.NoError(t, tg.Notify(context.Background(), pipeline.Report{RunID: "busy", New: 3, PublishedOK: 3}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "🆕 New 3")
}
