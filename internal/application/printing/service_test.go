package printing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	infra "github.com/cravings/printagent/internal/infrastructure/sandbox"
	"github.com/cravings/printagent/internal/infrastructure/settings"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrinters struct {
	names []string
	err   error
}

func (s stubPrinters) Printers(context.Context) ([]string, error) {
	return s.names, s.err
}

func newTestService(t *testing.T, h *harness, history printing.HistoryRepository, printers PrinterLister) *PrintService {
	t.Helper()
	store := settings.NewStore(t.TempDir())
	store.Load()
	return NewPrintService(h.orch, store, history, printers, h.status, nil, nil)
}

func TestPrintService_Navigate(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	svc := newTestService(t, h, nil, nil)

	tests := []struct {
		name   string
		url    string
		action string
		job    bool
	}{
		{"menu page opens normally", "https://app.cravings.live/menu", ActionAllow, false},
		{"bill is printed", "https://app.cravings.live/bill/1", ActionDeny, true},
		{"kot is printed", "https://app.cravings.live/kot/2?x=1", ActionDeny, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Navigate(context.Background(), NavigationRequest{URL: tt.url})
			require.NoError(t, err)
			assert.Equal(t, tt.action, res.Action)
			if tt.job {
				_, parseErr := uuid.Parse(res.JobID)
				assert.NoError(t, parseErr)
				h.opener.next(t)
			} else {
				assert.Empty(t, res.JobID)
			}
		})
	}
}

func TestPrintService_NavigateDuringShutdown(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	svc := newTestService(t, h, nil, nil)
	require.NoError(t, h.orch.Shutdown(context.Background()))

	_, err := svc.Navigate(context.Background(), NavigationRequest{URL: "https://app/bill/1"})
	assert.ErrorIs(t, err, ErrShuttingDown)

	res, err := svc.Navigate(context.Background(), NavigationRequest{URL: "https://app/menu"})
	require.NoError(t, err)
	assert.Equal(t, ActionAllow, res.Action)
}

func TestPrintService_Jobs(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	svc := newTestService(t, h, nil, nil)

	first, err := svc.Navigate(context.Background(), NavigationRequest{URL: "https://app/bill/1"})
	require.NoError(t, err)
	h.opener.next(t)
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Navigate(context.Background(), NavigationRequest{URL: "https://app/kot/2"})
	require.NoError(t, err)
	h.opener.next(t)

	jobs := svc.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, first.JobID, jobs[0].ID)
	assert.Equal(t, "bill", jobs[0].Kind)
	assert.Equal(t, "loading", jobs[0].State)
	assert.Equal(t, second.JobID, jobs[1].ID)
	assert.Equal(t, "kot", jobs[1].Kind)
}

func TestPrintService_History(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)

	t.Run("disabled", func(t *testing.T) {
		svc := newTestService(t, h, nil, nil)
		_, err := svc.History(context.Background(), HistoryRequest{})
		assert.ErrorIs(t, err, ErrHistoryDisabled)
	})

	t.Run("filters by kind", func(t *testing.T) {
		svc := newTestService(t, h, h.history, nil)

		ticket, sb := h.submit(t, "https://app/kot/5")
		sb.emit(infra.EventLoaded, "", "")
		require.True(t, h.orch.Cleanup(ticket.JobID))
		waitOutcome(t, ticket)
		require.Eventually(t, func() bool { return h.history.len() == 1 }, waitFor, 10*time.Millisecond)

		records, err := svc.History(context.Background(), HistoryRequest{Kind: "kot"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, ticket.JobID.String(), records[0].ID)
		assert.Equal(t, "timed_out", records[0].State)
		assert.Equal(t, printing.ErrCodeReadyTimeout, records[0].FailureCode)
		assert.False(t, records[0].Success)

		records, err = svc.History(context.Background(), HistoryRequest{Kind: "bill"})
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestPrintService_Settings(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	svc := newTestService(t, h, nil, nil)

	defaults := svc.Settings()
	assert.Equal(t, printing.DefaultWidthMM, defaults.Width)
	assert.Nil(t, defaults.DeviceName)

	saved, err := svc.SaveSettings(map[string]any{"width": "58", "height": 120, "deviceName": "TM-T82"})
	require.NoError(t, err)
	assert.Equal(t, 58.0, saved.Width)
	require.NotNil(t, saved.DeviceName)
	assert.Equal(t, "TM-T82", *saved.DeviceName)
	assert.Equal(t, saved, svc.Settings())
}

func TestPrintService_Printers(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)

	list, err := newTestService(t, h, nil, nil).Printers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	list, err = newTestService(t, h, nil, stubPrinters{names: []string{"TM-T82", "POS-58"}}).Printers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"TM-T82", "POS-58"}, list)

	_, err = newTestService(t, h, nil, stubPrinters{err: errors.New("lpstat missing")}).Printers(context.Background())
	assert.ErrorContains(t, err, "lpstat missing")
}

func TestPrintService_UpdateStatus(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	svc := newTestService(t, h, nil, nil)

	status := svc.UpdateStatus(context.Background(), UpdateStatusRequest{Success: true, Message: "Update downloaded"})
	assert.Equal(t, printing.ChannelUpdateStatus, status.Channel)

	published := h.status.all()
	require.Len(t, published, 1)
	assert.Equal(t, "Update downloaded", published[0].Message)
	assert.True(t, published[0].Success)
}
