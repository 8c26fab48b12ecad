package extract

import (
	"encoding/json"
	"reflect"
	"testing"

	"blpbridge/internal/blp"
	"blpbridge/internal/model"
)

func historicalMessage(children ...blp.Element) blp.Message {
	return blp.Message{
		Type:    blp.MsgHistoricalDataResponse,
		Content: blp.Object(blp.MsgHistoricalDataResponse, children...),
	}
}

func securityEntry(security string, fieldGroups ...blp.Element) blp.Element {
	return blp.Object("",
		blp.Scalar("security", security),
		blp.Array("fieldData", fieldGroups...),
	)
}

func TestHistoricalRows_SortedByDate(t *testing.T) {
	msg := historicalMessage(
		blp.Array("securityData",
			securityEntry("L Z7 Comdty",
				blp.Object("",
					blp.Scalar("date", "2006-01-31"),
					blp.Scalar("PX_LAST", 90),
				),
				blp.Object("",
					blp.Scalar("date", "2006-02-01"),
					blp.Scalar("PX_LAST", 90.05),
				),
			),
		),
	)

	rows := HistoricalRows(msg)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Date != "2006-01-31" || rows[1].Date != "2006-02-01" {
		t.Errorf("dates not ascending: %q, %q", rows[0].Date, rows[1].Date)
	}
	if got := rows[1].Values[0].Fields[0].Value; got != json.Number("90.05") {
		t.Errorf("PX_LAST = %v, want 90.05", got)
	}
}

func TestHistoricalRows_MultipleFieldsOneDate(t *testing.T) {
	msg := historicalMessage(
		blp.Array("securityData",
			securityEntry("L Z7 Comdty",
				blp.Object("",
					blp.Scalar("date", "2006-01-31"),
					blp.Scalar("PX_LAST", 90),
					blp.Scalar("ASK", 90),
				),
			),
		),
	)

	rows := HistoricalRows(msg)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	fields := rows[0].Values[0].Fields
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if fields[0].Name != "PX_LAST" || fields[1].Name != "ASK" {
		t.Errorf("field order = %q, %q; want PX_LAST, ASK", fields[0].Name, fields[1].Name)
	}
}

func TestHistoricalRows_RelativeDateDropped(t *testing.T) {
	msg := historicalMessage(
		blp.Array("securityData",
			securityEntry("L Z7 Comdty",
				blp.Object("",
					blp.Scalar("date", "2006-01-31"),
					blp.Scalar("relativeDate", "2006Q1"),
					blp.Scalar("PX_LAST", 90),
				),
			),
		),
	)

	rows := HistoricalRows(msg)
	for _, sv := range rows[0].Values {
		for _, f := range sv.Fields {
			if f.Name == "relativeDate" {
				t.Error("relativeDate surfaced as data")
			}
		}
	}
	if len(rows[0].Values[0].Fields) != 1 {
		t.Errorf("got %d fields, want 1", len(rows[0].Values[0].Fields))
	}
}

func TestHistoricalRows_ResponseErrorOnly(t *testing.T) {
	msg := historicalMessage(
		blp.Object("responseError",
			blp.Scalar("category", "CATEGORY"),
			blp.Scalar("subcategory", "SUBCATEGORY"),
			blp.Scalar("message", "MESSAGE"),
		),
	)

	rows := HistoricalRows(msg)
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}

	errs := Errors(msg)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if errs[0] != "CATEGORY/SUBCATEGORY MESSAGE" {
		t.Errorf("error = %q", errs[0])
	}
}

func TestErrors_AllScopes(t *testing.T) {
	msg := historicalMessage(
		blp.Array("securityData",
			blp.Object("",
				blp.Scalar("security", "UNKNOWN US Equity"),
				blp.Array("fieldExceptions",
					blp.Object("",
						blp.Scalar("fieldId", "BAD_FIELD"),
						blp.Object("errorInfo",
							blp.Scalar("category", "BAD_FLD"),
							blp.Scalar("subcategory", "INVALID_FIELD"),
							blp.Scalar("message", "Field not valid"),
						),
					),
				),
				blp.Object("securityError",
					blp.Scalar("category", "BAD_SEC"),
					blp.Scalar("subcategory", "INVALID_SECURITY"),
					blp.Scalar("message", "Unknown/Invalid Security"),
				),
			),
		),
	)

	errs := Errors(msg)
	want := []string{
		"BAD_FLD/INVALID_FIELD Field not valid: BAD_FIELD",
		"BAD_SEC/INVALID_SECURITY Unknown/Invalid Security: UNKNOWN US Equity",
	}
	if !reflect.DeepEqual(errs, want) {
		t.Errorf("errors = %v, want %v", errs, want)
	}
}

func TestErrors_IndependentOfData(t *testing.T) {
	msg := historicalMessage(
		blp.Array("securityData",
			securityEntry("L Z7 Comdty",
				blp.Object("",
					blp.Scalar("date", "2006-01-31"),
					blp.Scalar("PX_LAST", 90),
				),
			),
			blp.Object("",
				blp.Scalar("security", "UNKNOWN US Equity"),
				blp.Object("securityError",
					blp.Scalar("category", "BAD_SEC"),
					blp.Scalar("subcategory", "INVALID_SECURITY"),
					blp.Scalar("message", "Unknown/Invalid Security"),
				),
			),
		),
	)

	if rows := HistoricalRows(msg); len(rows) == 0 {
		t.Error("expected data rows alongside the security error")
	}
	if errs := Errors(msg); len(errs) == 0 {
		t.Error("expected errors alongside the data rows")
	}
}

func TestReferenceRows(t *testing.T) {
	msg := blp.Message{
		Type: blp.MsgReferenceDataResponse,
		Content: blp.Object(blp.MsgReferenceDataResponse,
			blp.Array("securityData",
				blp.Object("",
					blp.Scalar("security", "IBM US Equity"),
					blp.Object("fieldData",
						blp.Scalar("PX_LAST", 138.45),
						blp.Scalar("NAME", "INTL BUSINESS MACHINES"),
					),
				),
			),
		),
	}

	rows := ReferenceRows(msg)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Security != "IBM US Equity" {
		t.Errorf("security = %q", rows[0].Security)
	}
	want := []model.Field{
		{Name: "PX_LAST", Value: json.Number("138.45")},
		{Name: "NAME", Value: "INTL BUSINESS MACHINES"},
	}
	if !reflect.DeepEqual(rows[0].Fields, want) {
		t.Errorf("fields = %v, want %v", rows[0].Fields, want)
	}
}

func TestReferenceRows_NoSecurityData(t *testing.T) {
	msg := blp.Message{
		Type:    blp.MsgReferenceDataResponse,
		Content: blp.Object(blp.MsgReferenceDataResponse),
	}
	if rows := ReferenceRows(msg); len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestMergeHistorical_EqualsCombinedExtraction(t *testing.T) {
	first := historicalMessage(
		blp.Array("securityData",
			securityEntry("L Z7 Comdty",
				blp.Object("",
					blp.Scalar("date", "2006-02-01"),
					blp.Scalar("PX_LAST", 90.05),
				),
			),
		),
	)
	second := historicalMessage(
		blp.Array("securityData",
			securityEntry("L Z7 Comdty",
				blp.Object("",
					blp.Scalar("date", "2006-01-31"),
					blp.Scalar("PX_LAST", 90),
				),
				blp.Object("",
					blp.Scalar("date", "2006-02-01"),
					blp.Scalar("ASK", 90.10),
				),
			),
		),
	)
	combined := historicalMessage(
		blp.Array("securityData",
			securityEntry("L Z7 Comdty",
				blp.Object("",
					blp.Scalar("date", "2006-02-01"),
					blp.Scalar("PX_LAST", 90.05),
				),
				blp.Object("",
					blp.Scalar("date", "2006-01-31"),
					blp.Scalar("PX_LAST", 90),
				),
				blp.Object("",
					blp.Scalar("date", "2006-02-01"),
					blp.Scalar("ASK", 90.10),
				),
			),
		),
	)

	merged := MergeHistorical(HistoricalRows(first), HistoricalRows(second))
	direct := HistoricalRows(combined)

	if !reflect.DeepEqual(merged, direct) {
		t.Errorf("merged partials != combined extraction\nmerged:  %v\ncombined: %v", merged, direct)
	}
	if len(merged) != 2 || merged[0].Date != "2006-01-31" {
		t.Errorf("merged series not sorted: %v", merged)
	}
	// both fields for 2006-02-01 must survive the merge
	if fields := merged[1].Values[0].Fields; len(fields) != 2 {
		t.Errorf("got %d fields for 2006-02-01, want 2", len(fields))
	}
}

func TestFieldValues_SkipsUnrenderable(t *testing.T) {
	msg := blp.Message{
		Type: "MarketDataEvents",
		Content: blp.Object("MarketDataEvents",
			blp.Scalar("LAST_PRICE", 138.45),
			blp.Scalar("BID", "138.40"),
			blp.Scalar("EMPTY", nil),
			blp.Array("EXCH_TRADES", blp.Scalar("", 1)),
		),
	}

	values := FieldValues(msg, nil)
	want := map[string]string{
		"LAST_PRICE": "138.45",
		"BID":        "138.40",
	}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("values = %v, want %v", values, want)
	}
}
