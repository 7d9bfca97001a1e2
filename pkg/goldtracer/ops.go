package goldtracer

import (
	"context"
	"strings"

	"goldtracer/internal/domain"
)

// The methods in this file never return transport errors. Failures are logged
// and normalized so a caller can keep its previous state: nil for the
// summary, an empty slice for history.

// FetchSummary returns the current snapshot, or nil on any failure. A nil
// result means "keep what you have", never "clear".
func (c *Client) FetchSummary(ctx context.Context) *domain.Snapshot {
	snap, err := c.Summary(ctx)
	if err != nil {
		c.log.Warn("summary fetch failed", "error", err)
		return nil
	}
	return snap
}

// FetchHistory returns the history for r, or an empty non-nil slice on any
// failure.
func (c *Client) FetchHistory(ctx context.Context, r domain.HistoryRange) []domain.HistoryPoint {
	points, err := c.History(ctx, r)
	if err != nil {
		c.log.Warn("history fetch failed", "range", r, "error", err)
		return []domain.HistoryPoint{}
	}
	if points == nil {
		points = []domain.HistoryPoint{}
	}
	return points
}

// Notice is a user-visible outcome of an operator action.
type Notice struct {
	OK   bool
	Text string
}

// Reconcile re-reads the dashboard summary after a state-changing call. It
// must take its staleness sequence when it runs, not before the call.
type Reconcile func()

// TriggerSync forces a backend refresh and then always runs reconcile,
// whether the sync succeeded or not. A nil reconcile is skipped.
func (c *Client) TriggerSync(ctx context.Context, full bool, reconcile Reconcile) Notice {
	notice := SyncNotice(c.Sync(ctx, full))
	if !notice.OK {
		c.log.Warn("sync failed", "full", full, "notice", notice.Text)
	}
	if reconcile != nil {
		reconcile()
	}
	return notice
}

// SyncNotice converts a Sync outcome into a user-visible notice.
func SyncNotice(ack *SyncAck, err error) Notice {
	if err != nil {
		return Notice{Text: "Sync failed: " + err.Error()}
	}
	text := "Sync complete"
	if ack != nil && ack.Message != "" {
		text += ": " + ack.Message
	} else if ack != nil && ack.Status != "" {
		text += " (" + ack.Status + ")"
	}
	return Notice{OK: true, Text: text}
}

// CorrectionInput is a manual FedWatch correction as typed by an operator.
type CorrectionInput struct {
	ProbPause   string
	ProbCut25   string
	MeetingDate string
}

// Parse validates the input into an update body. Nothing is sent.
func (in CorrectionInput) Parse(defaultMeeting string) (FedWatchUpdate, error) {
	pause, err := ParseProbability(in.ProbPause)
	if err != nil {
		return FedWatchUpdate{}, err
	}
	cut, err := ParseProbability(in.ProbCut25)
	if err != nil {
		return FedWatchUpdate{}, err
	}
	date := strings.TrimSpace(in.MeetingDate)
	if date == "" {
		date = defaultMeeting
	}
	return FedWatchUpdate{ProbPause: pause, ProbCut25: cut, MeetingDate: date}, nil
}

// SubmitFedWatchCorrection validates and posts a manual correction. Invalid
// input returns an ErrInvalidCorrection error without any request. On
// acceptance reconcile runs before returning.
func (c *Client) SubmitFedWatchCorrection(ctx context.Context, in CorrectionInput, reconcile Reconcile) (bool, error) {
	u, err := in.Parse(c.defaultMeeting)
	if err != nil {
		return false, err
	}
	if err := c.UpdateFedWatch(ctx, u); err != nil {
		c.log.Warn("fedwatch correction rejected", "error", err)
		return false, err
	}
	c.log.Info("fedwatch correction accepted", "prob_pause", u.ProbPause, "prob_cut_25", u.ProbCut25, "meeting_date", u.MeetingDate)
	if reconcile != nil {
		reconcile()
	}
	return true, nil
}
