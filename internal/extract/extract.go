package extract

import (
	"fmt"
	"log/slog"
	"sort"

	"blpbridge/internal/blp"
	"blpbridge/internal/model"
)

// relativeDateField is provider metadata attached to historical field
// groups; it is never surfaced as data.
const relativeDateField = "relativeDate"

// ReferenceRows extracts one pricing record per security from a reference
// data response, field lists in encounter order. An error-only response
// yields no rows.
func ReferenceRows(msg blp.Message) []model.PricingRecord {
	rows := []model.PricingRecord{}

	securityData, ok := msg.Content.Element("securityData")
	if !ok {
		return rows
	}

	for _, entry := range securityData.Values() {
		record := model.PricingRecord{
			Security: entry.String("security"),
			Fields:   []model.Field{},
		}
		if fieldData, ok := entry.Element("fieldData"); ok {
			for _, field := range fieldData.Elements() {
				record.Fields = append(record.Fields, model.Field{
					Name:  field.Name(),
					Value: field.Value(),
				})
			}
		}
		rows = append(rows, record)
	}
	return rows
}

// HistoricalRows extracts per-date series from a historical data response.
// Rows are grouped by date across securities, sorted ascending by date; a
// security reported in several field-data groups for the same date has its
// field lists merged, not overwritten.
func HistoricalRows(msg blp.Message) []model.HistoricalSeries {
	acc := newHistoricalAccumulator()

	securityData, ok := msg.Content.Element("securityData")
	if !ok {
		return acc.series()
	}

	for _, entry := range securityData.Values() {
		security := entry.String("security")
		fieldData, ok := entry.Element("fieldData")
		if !ok {
			continue
		}
		for _, group := range fieldData.Values() {
			var date string
			fields := []model.Field{}
			for _, field := range group.Elements() {
				switch field.Name() {
				case "date":
					date, _ = field.AsString()
				case relativeDateField:
					// metadata, not data
				default:
					fields = append(fields, model.Field{
						Name:  field.Name(),
						Value: field.Value(),
					})
				}
			}
			acc.add(date, security, fields)
		}
	}
	return acc.series()
}

// MergeHistorical merges series extracted from several response messages
// into one chronologically ordered series. Merging partial responses is
// equivalent to extracting from one combined response with the same content.
func MergeHistorical(parts ...[]model.HistoricalSeries) []model.HistoricalSeries {
	acc := newHistoricalAccumulator()
	for _, part := range parts {
		for _, series := range part {
			for _, sv := range series.Values {
				acc.add(series.Date, sv.Security, sv.Fields)
			}
		}
	}
	return acc.series()
}

// historicalAccumulator merges (date, security) field lists by appending,
// preserving first-encounter order of securities within a date.
type historicalAccumulator struct {
	fields        map[string]map[string][]model.Field
	securityOrder map[string][]string
}

func newHistoricalAccumulator() *historicalAccumulator {
	return &historicalAccumulator{
		fields:        make(map[string]map[string][]model.Field),
		securityOrder: make(map[string][]string),
	}
}

func (a *historicalAccumulator) add(date, security string, fields []model.Field) {
	perSecurity, ok := a.fields[date]
	if !ok {
		perSecurity = make(map[string][]model.Field)
		a.fields[date] = perSecurity
	}
	if _, ok := perSecurity[security]; !ok {
		a.securityOrder[date] = append(a.securityOrder[date], security)
	}
	perSecurity[security] = append(perSecurity[security], fields...)
}

// series flattens the accumulator, sorted ascending by date. The sort is a
// hard contract: callers merge paginated responses and must see a single
// chronologically ordered series.
func (a *historicalAccumulator) series() []model.HistoricalSeries {
	dates := make([]string, 0, len(a.fields))
	for date := range a.fields {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	result := []model.HistoricalSeries{}
	for _, date := range dates {
		entry := model.HistoricalSeries{Date: date, Values: []model.SecurityValues{}}
		for _, security := range a.securityOrder[date] {
			entry.Values = append(entry.Values, model.SecurityValues{
				Security: security,
				Fields:   a.fields[date][security],
			})
		}
		result = append(result, entry)
	}
	return result
}

// Errors extracts every error a response carries, across all three scopes:
// response-level, per-security, and per-field. Entries are formatted as
// "<category>/<subcategory> <message>", suffixed with the field id or
// security identifier where the error is scoped to one.
func Errors(msg blp.Message) []string {
	result := []string{}

	if responseError, ok := msg.Content.Element("responseError"); ok {
		result = append(result, formatError(responseError))
	}

	securityData, ok := msg.Content.Element("securityData")
	if !ok {
		return result
	}
	for _, entry := range securityData.Values() {
		if fieldExceptions, ok := entry.Element("fieldExceptions"); ok {
			for _, exception := range fieldExceptions.Values() {
				if errorInfo, ok := exception.Element("errorInfo"); ok {
					result = append(result, fmt.Sprintf("%s: %s",
						formatError(errorInfo), exception.String("fieldId")))
				}
			}
		}
		if securityError, ok := entry.Element("securityError"); ok {
			result = append(result, fmt.Sprintf("%s: %s",
				formatError(securityError), entry.String("security")))
		}
	}
	return result
}

func formatError(el blp.Element) string {
	return fmt.Sprintf("%s/%s %s",
		el.String("category"), el.String("subcategory"), el.String("message"))
}

// FieldValues renders every value-bearing element of a streaming update as a
// display string. An element that fails to render is skipped with a warning;
// one bad field must not poison the rest of the update.
func FieldValues(msg blp.Message, logger *slog.Logger) map[string]string {
	if logger == nil {
		logger = slog.Default()
	}

	values := make(map[string]string)
	for _, el := range msg.Content.Elements() {
		if el.NumValues() == 0 {
			continue
		}
		s, err := el.AsString()
		if err != nil {
			logger.Warn("skipping unrenderable field",
				"field", el.Name(),
				"error", err,
			)
			continue
		}
		values[el.Name()] = s
	}
	return values
}
