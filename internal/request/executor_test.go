package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"blpbridge/internal/blp"
	"blpbridge/internal/blp/blptest"
	"blpbridge/internal/model"
	"blpbridge/internal/session"
)

func testConfig() Config {
	return Config{Service: "//blp/refdata", PollTimeout: 5 * time.Millisecond}
}

func supervisorFor(sess *blptest.ScriptedSession) *session.Supervisor {
	return session.NewSupervisor(session.RoleRequests, func(ctx context.Context) (blp.Session, error) {
		return sess, nil
	}, nil)
}

func referenceMessage(security string, fields ...blp.Element) blp.Message {
	return blp.Message{
		Type: blp.MsgReferenceDataResponse,
		Content: blp.Object(blp.MsgReferenceDataResponse,
			blp.Array("securityData",
				blp.Object("",
					blp.Scalar("security", security),
					blp.Object("fieldData", fields...),
				),
			),
		),
	}
}

func TestLatestData_CollectsAcrossMessages(t *testing.T) {
	sess := &blptest.ScriptedSession{}
	sess.Enqueue(blp.Event{
		Type:     blp.EventPartialResponse,
		Messages: []blp.Message{referenceMessage("IBM US Equity", blp.Scalar("PX_LAST", 138.45))},
	})
	sess.Enqueue(blp.Event{Type: blp.EventTimeout})
	sess.Enqueue(blp.Event{
		Type:     blp.EventResponse,
		Messages: []blp.Message{referenceMessage("VOD LN Equity", blp.Scalar("PX_LAST", 72.1))},
	})

	e := NewExecutor(testConfig(), supervisorFor(sess), nil)
	result, err := e.LatestData(context.Background(), []string{"IBM US Equity", "VOD LN Equity"}, []string{"PX_LAST"})
	if err != nil {
		t.Fatalf("LatestData: %v", err)
	}

	if len(result.Response) != 2 {
		t.Fatalf("got %d records, want 2", len(result.Response))
	}
	if result.Response[0].Security != "IBM US Equity" || result.Response[1].Security != "VOD LN Equity" {
		t.Errorf("records out of arrival order: %v", result.Response)
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors = %v, want empty", result.Errors)
	}

	if len(sess.Requests) != 1 {
		t.Fatalf("sent %d requests, want 1", len(sess.Requests))
	}
	req := sess.Requests[0].Request
	if req.Operation != "ReferenceDataRequest" || req.Settings["returnFormattedValue"] != true {
		t.Errorf("request = %+v", req)
	}
}

func TestLatestData_IgnoresUnexpectedMessageTypes(t *testing.T) {
	sess := &blptest.ScriptedSession{}
	sess.Enqueue(blp.Event{
		Type: blp.EventOther,
		Messages: []blp.Message{{
			Type:    "SessionConnectionUp",
			Content: blp.Object("SessionConnectionUp"),
		}},
	})
	sess.Enqueue(blp.Event{
		Type:     blp.EventResponse,
		Messages: []blp.Message{referenceMessage("IBM US Equity", blp.Scalar("PX_LAST", 138.45))},
	})

	e := NewExecutor(testConfig(), supervisorFor(sess), nil)
	result, err := e.LatestData(context.Background(), []string{"IBM US Equity"}, []string{"PX_LAST"})
	if err != nil {
		t.Fatalf("LatestData: %v", err)
	}
	if len(result.Response) != 1 {
		t.Errorf("got %d records, want 1", len(result.Response))
	}
}

func historicalMessage(security, date string, field blp.Element) blp.Message {
	return blp.Message{
		Type: blp.MsgHistoricalDataResponse,
		Content: blp.Object(blp.MsgHistoricalDataResponse,
			blp.Array("securityData",
				blp.Object("",
					blp.Scalar("security", security),
					blp.Array("fieldData",
						blp.Object("", blp.Scalar("date", date), field),
					),
				),
			),
		),
	}
}

func TestHistoricalData_SortedAcrossMessages(t *testing.T) {
	sess := &blptest.ScriptedSession{}
	// later date arrives first
	sess.Enqueue(blp.Event{
		Type:     blp.EventPartialResponse,
		Messages: []blp.Message{historicalMessage("L Z7 Comdty", "2006-02-01", blp.Scalar("PX_LAST", 90.05))},
	})
	sess.Enqueue(blp.Event{
		Type:     blp.EventResponse,
		Messages: []blp.Message{historicalMessage("L Z7 Comdty", "2006-01-31", blp.Scalar("PX_LAST", 90))},
	})

	e := NewExecutor(testConfig(), supervisorFor(sess), nil)
	result, err := e.HistoricalData(context.Background(), model.HistoricalQuery{
		Securities: []string{"L Z7 Comdty"},
		Fields:     []string{"PX_LAST"},
		StartDate:  "20060131",
		EndDate:    "20060201",
	})
	if err != nil {
		t.Fatalf("HistoricalData: %v", err)
	}

	if len(result.Response) != 2 {
		t.Fatalf("got %d series, want 2", len(result.Response))
	}
	if result.Response[0].Date != "2006-01-31" || result.Response[1].Date != "2006-02-01" {
		t.Errorf("series not sorted ascending: %v", result.Response)
	}

	req := sess.Requests[0].Request
	if req.Settings["periodicitySelection"] != "DAILY" {
		t.Errorf("periodicity = %v, want DAILY", req.Settings["periodicitySelection"])
	}
}

func TestCollect_PollFailureMarksSessionBroken(t *testing.T) {
	sess := &blptest.ScriptedSession{}
	sess.EnqueueErr(errors.New("read: connection reset"))

	sup := supervisorFor(sess)
	e := NewExecutor(testConfig(), sup, nil)

	_, err := e.LatestData(context.Background(), []string{"IBM US Equity"}, []string{"PX_LAST"})
	if !session.IsConnError(err) {
		t.Fatalf("err = %v, want ConnError", err)
	}
	if sup.IsOpen() {
		t.Error("session still open after poll failure")
	}
}

func TestCollect_SendFailureMarksSessionBroken(t *testing.T) {
	sess := &blptest.ScriptedSession{SendRequestErr: errors.New("write: broken pipe")}
	sup := supervisorFor(sess)
	e := NewExecutor(testConfig(), sup, nil)

	_, err := e.LatestData(context.Background(), []string{"IBM US Equity"}, []string{"PX_LAST"})
	if !session.IsConnError(err) {
		t.Fatalf("err = %v, want ConnError", err)
	}
	if sup.IsOpen() {
		t.Error("session still open after send failure")
	}
}

func TestCollect_StaleResponseFromEarlierRequestIgnored(t *testing.T) {
	sess := &blptest.ScriptedSession{}
	// Leftover from a request that never finished collecting: carries its own
	// correlation id, which cannot match the one generated for this call.
	stale := referenceMessage("IBM US Equity", blp.Scalar("PX_LAST", 138.45))
	stale.CorrelationID = "11111111-aaaa-4bbb-8ccc-000000000001"
	sess.Enqueue(blp.Event{Type: blp.EventPartialResponse, Messages: []blp.Message{stale}})
	sess.Enqueue(blp.Event{
		Type:     blp.EventResponse,
		Messages: []blp.Message{referenceMessage("VOD LN Equity", blp.Scalar("PX_LAST", 72.1))},
	})

	e := NewExecutor(testConfig(), supervisorFor(sess), nil)
	result, err := e.LatestData(context.Background(), []string{"VOD LN Equity"}, []string{"PX_LAST"})
	if err != nil {
		t.Fatalf("LatestData: %v", err)
	}

	if len(result.Response) != 1 {
		t.Fatalf("got %d records, want 1: %v", len(result.Response), result.Response)
	}
	if result.Response[0].Security != "VOD LN Equity" {
		t.Errorf("security = %q, want the response for this request", result.Response[0].Security)
	}
}

func TestCollect_CancelMidRequestInvalidatesSession(t *testing.T) {
	sess := &blptest.ScriptedSession{}
	sup := supervisorFor(sess)
	e := NewExecutor(testConfig(), sup, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.LatestData(ctx, []string{"IBM US Equity"}, []string{"PX_LAST"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(sess.Requests) != 1 {
		t.Fatalf("sent %d requests, want 1", len(sess.Requests))
	}
	// The request is on the wire with nobody left to drain its response, so
	// the handle must not be reused.
	if sup.IsOpen() {
		t.Error("session still open after abandoning an in-flight request")
	}
}

func TestCollect_CancelledContext(t *testing.T) {
	sess := &blptest.ScriptedSession{} // empty script: polls time out forever

	e := NewExecutor(testConfig(), supervisorFor(sess), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.LatestData(ctx, []string{"IBM US Equity"}, []string{"PX_LAST"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
