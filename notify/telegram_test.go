package notify

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitor-pricewatch/models"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func testReport() *models.Report {
	return &models.Report{
		Date: "20240315",
		Summary: models.Summary{
			TotalProducts: 3, TotalOffendingProducts: 2, TotalDeviatedProducts: 2, TotalUndetermined: 1,
			ComplianceRate: decimal.RequireFromString("33.33"),
		},
		Retailers: map[string]models.RetailerSummary{
			"newegg":  {Summary: models.Summary{ComplianceRate: decimal.RequireFromString("100")}},
			"bestbuy": {Summary: models.Summary{ComplianceRate: decimal.Zero}, AverageDeviation: decimal.RequireFromString("-10")},
		},
		Products: []models.ReconciledRow{
			{Product: "Dell P2422H", Retailer: "bestbuy", ManufacturerPrice: decimal.RequireFromString("200"),
				RetailerPrice: nd("170"), Deviation: nd("-15"), Status: models.StatusNonCompliant},
			{Product: "Dell S2721H", Retailer: "bestbuy", ManufacturerPrice: decimal.RequireFromString("200"),
				RetailerPrice: nd("190"), Deviation: nd("-5"), Status: models.StatusNeedsAttention},
			{Product: "Dell U2723QE", Retailer: "newegg", ManufacturerPrice: decimal.RequireFromString("200"),
				RetailerPrice: nd("205"), Deviation: nd("2.5"), Status: models.StatusCompliant},
			{Product: "Dell E2222H", Retailer: "newegg", ManufacturerPrice: decimal.RequireFromString("120"),
				Status: models.StatusUndetermined},
		},
	}
}

func TestFormatSummary(t *testing.T) {
	want := `Price compliance for 20240315

Compliance rate: 33.33%
Products compared: 3
Offending: 2
Deviated: 2
Undetermined: 1

By retailer:
- bestbuy: 0.00% compliant, average deviation -10.00%
- newegg: 100.00% compliant, average deviation 0.00%

Top offenders:
1. Dell P2422H at bestbuy: $170.00 vs $200.00 (-15.00%, Non-Compliant)
`
	assert.Equal(t, want, FormatSummary(testReport(), 1))

	all := FormatSummary(testReport(), 5)
	assert.Contains(t, all, "2. Dell S2721H at bestbuy: $190.00 vs $200.00 (-5.00%, Needs Attention)\n")
	assert.NotContains(t, all, "U2723QE")

	none := FormatSummary(testReport(), 0)
	assert.NotContains(t, none, "Top offenders")
}

func TestSplitMessage(t *testing.T) {
	t.Run("short message is kept", func(t *testing.T) {
		assert.Equal(t, []string{"hello\n"}, splitMessage("hello\n", 10))
	})

	t.Run("splits on line breaks", func(t *testing.T) {
		got := splitMessage("aaaa\nbbbb\ncccc\n", 10)
		assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, got)
	})

	t.Run("long line is cut", func(t *testing.T) {
		got := splitMessage(strings.Repeat("x", 25), 10)
		assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), "xxxxx\n"}, got)
	})

	t.Run("line of exactly max length", func(t *testing.T) {
		got := splitMessage("ab\n"+strings.Repeat("y", 10), 10)
		assert.Equal(t, []string{"ab\n", strings.Repeat("y", 10)}, got)
	})

	t.Run("cuts on rune boundaries", func(t *testing.T) {
		got := splitMessage(strings.Repeat("é", 12), 9)
		for _, part := range got {
			assert.True(t, utf8.ValidString(part), "invalid part %q", part)
			assert.LessOrEqual(t, len(part), 9)
		}
		assert.Equal(t, strings.Repeat("é", 12)+"\n", strings.Join(got, ""))
	})
}

type telegramServer struct {
	mu    sync.Mutex
	texts []string
	chats []string
}

func (s *telegramServer) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"pricewatch","username":"pricewatch_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		r.ParseForm()
		s.mu.Lock()
		s.texts = append(s.texts, r.PostForm.Get("text"))
		s.chats = append(s.chats, r.PostForm.Get("chat_id"))
		s.mu.Unlock()
		io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":99,"type":"private"}}}`)
	default:
		io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func TestNotifyReport(t *testing.T) {
	ts := &telegramServer{}
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer srv.Close()

	log, hook := test.NewNullLogger()
	n, err := newNotifier("token", srv.URL+"/bot%s/%s", srv.Client(), 99, log)
	require.NoError(t, err)

	require.NoError(t, n.NotifyReport(testReport(), 5, "https://docs.google.com/spreadsheets/d/abc/edit#gid=1"))

	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.Len(t, ts.texts, 1)
	assert.Equal(t, "99", ts.chats[0])
	assert.Contains(t, ts.texts[0], "Compliance rate: 33.33%")
	assert.Contains(t, ts.texts[0], "View spreadsheet: https://docs.google.com/spreadsheets/d/abc/edit#gid=1")
	assert.Contains(t, hook.LastEntry().Message, "Sent summary to Telegram chat 99")
}

func TestNotifyFailure(t *testing.T) {
	ts := &telegramServer{}
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	n, err := newNotifier("token", srv.URL+"/bot%s/%s", srv.Client(), 99, log)
	require.NoError(t, err)

	require.NoError(t, n.NotifyFailure("20240315", errors.New("snapshot missing")))

	ts.mu.Lock()
	defer ts.mu.Unlock()
	assert.Equal(t, []string{"Price compliance run for 20240315 failed: snapshot missing"}, ts.texts)
}

func TestNewNotifierValidation(t *testing.T) {
	log, _ := test.NewNullLogger()

	_, err := newNotifier("", "http://unused/bot%s/%s", http.DefaultClient, 1, log)
	assert.ErrorContains(t, err, "token is empty")

	_, err = newNotifier("token", "http://unused/bot%s/%s", http.DefaultClient, 0, log)
	assert.ErrorContains(t, err, "chat id")
}

func TestNewNotifierUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	_, err := newNotifier("bad", srv.URL+"/bot%s/%s", srv.Client(), 1, log)
	assert.ErrorContains(t, err, "failed to initialize bot")
}
