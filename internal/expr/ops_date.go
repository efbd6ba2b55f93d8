package expr

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
)

func asTime(op string, v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC(), nil
	case time.Time:
		return t.UTC(), nil
	default:
		return time.Time{}, dberr.BadValue("%s requires a date operand, got %T", op, v)
	}
}

func dateUnit(name string, fn func(time.Time) interface{}) {
	register(name, func(raw interface{}) (node, error) {
		var dateN node
		var err error
		if d, ok := rawDoc(raw); ok {
			dateN, err = compileField(d, "date")
		} else {
			nodes, cerr := compileArgList(raw)
			if cerr != nil {
				return nil, cerr
			}
			if len(nodes) != 1 {
				return nil, argCountErr(name, 1, len(nodes))
			}
			dateN = nodes[0]
		}
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			v, err := dateN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(v) {
				return nil, nil
			}
			t, err := asTime(name, v)
			if err != nil {
				return nil, err
			}
			return fn(t), nil
		}, nil
	})
}

func init() {
	dateUnit("$year", func(t time.Time) interface{} { return int32(t.Year()) })
	dateUnit("$month", func(t time.Time) interface{} { return int32(t.Month()) })
	dateUnit("$dayOfMonth", func(t time.Time) interface{} { return int32(t.Day()) })
	dateUnit("$hour", func(t time.Time) interface{} { return int32(t.Hour()) })
	dateUnit("$minute", func(t time.Time) interface{} { return int32(t.Minute()) })
	dateUnit("$second", func(t time.Time) interface{} { return int32(t.Second()) })
	dateUnit("$millisecond", func(t time.Time) interface{} { return int32(t.Nanosecond() / 1e6) })
	dateUnit("$dayOfWeek", func(t time.Time) interface{} { return int32(t.Weekday()) + 1 })
	dateUnit("$dayOfYear", func(t time.Time) interface{} { return int32(t.YearDay()) })
	dateUnit("$week", func(t time.Time) interface{} {
		_, week := t.ISOWeek()
		return int32(week)
	})
	dateUnit("$isoWeek", func(t time.Time) interface{} {
		_, week := t.ISOWeek()
		return int32(week)
	})
	dateUnit("$isoWeekYear", func(t time.Time) interface{} {
		year, _ := t.ISOWeek()
		return int32(year)
	})
	dateUnit("$isoDayOfWeek", func(t time.Time) interface{} {
		wd := int32(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return wd
	})

	register("$dateToString", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$dateToString requires a document argument")
		}
		dateN, err := compileField(d, "date")
		if err != nil {
			return nil, err
		}
		format := "%Y-%m-%dT%H:%M:%S.%LZ"
		var formatN node
		if fv, ok := docGet(d, "format"); ok {
			formatN, err = compileNode(fv)
			if err != nil {
				return nil, err
			}
		}
		var onNullN node
		if nv, ok := docGet(d, "onNull"); ok {
			onNullN, err = compileNode(nv)
			if err != nil {
				return nil, err
			}
		}
		return func(ctx *Ctx) (interface{}, error) {
			dv, err := dateN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(dv) {
				if onNullN != nil {
					return onNullN(ctx)
				}
				return nil, nil
			}
			t, err := asTime("$dateToString", dv)
			if err != nil {
				return nil, err
			}
			f := format
			if formatN != nil {
				fv, err := formatN(ctx)
				if err != nil {
					return nil, err
				}
				if s, ok := fv.(string); ok {
					f = s
				}
			}
			return strftime(f, t), nil
		}, nil
	})

	register("$dateFromString", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$dateFromString requires a document argument")
		}
		strN, err := compileField(d, "dateString")
		if err != nil {
			return nil, err
		}
		var onErrorN, onNullN node
		if v, ok := docGet(d, "onError"); ok {
			onErrorN, err = compileNode(v)
			if err != nil {
				return nil, err
			}
		}
		if v, ok := docGet(d, "onNull"); ok {
			onNullN, err = compileNode(v)
			if err != nil {
				return nil, err
			}
		}
		return func(ctx *Ctx) (interface{}, error) {
			sv, err := strN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(sv) {
				if onNullN != nil {
					return onNullN(ctx)
				}
				return nil, nil
			}
			s, ok := sv.(string)
			if !ok {
				return nil, dberr.BadValue("$dateFromString requires a string dateString")
			}
			t, perr := parseFlexibleDate(s)
			if perr != nil {
				if onErrorN != nil {
					return onErrorN(ctx)
				}
				return nil, dberr.BadValue("cannot parse date %q: %v", s, perr)
			}
			return primitive.NewDateTimeFromTime(t), nil
		}, nil
	})

	register("$dateAdd", dateArithOp(1))
	register("$dateSubtract", dateArithOp(-1))

	register("$dateDiff", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$dateDiff requires a document argument")
		}
		startN, err := compileField(d, "startDate")
		if err != nil {
			return nil, err
		}
		endN, err := compileField(d, "endDate")
		if err != nil {
			return nil, err
		}
		unitRaw, _ := docGet(d, "unit")
		unitN, err := compileNode(unitRaw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			sv, err := startN(ctx)
			if err != nil {
				return nil, err
			}
			ev, err := endN(ctx)
			if err != nil {
				return nil, err
			}
			st, err := asTime("$dateDiff", sv)
			if err != nil {
				return nil, err
			}
			et, err := asTime("$dateDiff", ev)
			if err != nil {
				return nil, err
			}
			uv, err := unitN(ctx)
			if err != nil {
				return nil, err
			}
			unit, _ := uv.(string)
			return int64(diffByUnit(unit, st, et)), nil
		}, nil
	})

	register("$dateTrunc", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$dateTrunc requires a document argument")
		}
		dateN, err := compileField(d, "date")
		if err != nil {
			return nil, err
		}
		unitRaw, _ := docGet(d, "unit")
		unitN, err := compileNode(unitRaw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			dv, err := dateN(ctx)
			if err != nil {
				return nil, err
			}
			t, err := asTime("$dateTrunc", dv)
			if err != nil {
				return nil, err
			}
			uv, err := unitN(ctx)
			if err != nil {
				return nil, err
			}
			unit, _ := uv.(string)
			return primitive.NewDateTimeFromTime(truncByUnit(unit, t)), nil
		}, nil
	})
}

func dateArithOp(sign int) func(interface{}) (node, error) {
	return func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("date arithmetic operators require a document argument")
		}
		startN, err := compileField(d, "startDate")
		if err != nil {
			return nil, err
		}
		unitRaw, _ := docGet(d, "unit")
		unitN, err := compileNode(unitRaw)
		if err != nil {
			return nil, err
		}
		amountRaw, _ := docGet(d, "amount")
		amountN, err := compileNode(amountRaw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			sv, err := startN(ctx)
			if err != nil {
				return nil, err
			}
			t, err := asTime("$dateAdd", sv)
			if err != nil {
				return nil, err
			}
			uv, err := unitN(ctx)
			if err != nil {
				return nil, err
			}
			unit, _ := uv.(string)
			av, err := amountN(ctx)
			if err != nil {
				return nil, err
			}
			af, _ := bsonval.AsFloat64(av)
			amount := sign * int(af)
			return primitive.NewDateTimeFromTime(addByUnit(unit, t, amount)), nil
		}, nil
	}
}

func addByUnit(unit string, t time.Time, amount int) time.Time {
	switch unit {
	case "year":
		return t.AddDate(amount, 0, 0)
	case "quarter":
		return t.AddDate(0, amount*3, 0)
	case "month":
		return t.AddDate(0, amount, 0)
	case "week":
		return t.AddDate(0, 0, amount*7)
	case "day":
		return t.AddDate(0, 0, amount)
	case "hour":
		return t.Add(time.Duration(amount) * time.Hour)
	case "minute":
		return t.Add(time.Duration(amount) * time.Minute)
	case "second":
		return t.Add(time.Duration(amount) * time.Second)
	case "millisecond":
		return t.Add(time.Duration(amount) * time.Millisecond)
	default:
		return t
	}
}

func truncByUnit(unit string, t time.Time) time.Time {
	switch unit {
	case "year":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "day":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case "hour":
		return t.Truncate(time.Hour)
	case "minute":
		return t.Truncate(time.Minute)
	case "second":
		return t.Truncate(time.Second)
	default:
		return t
	}
}

func diffByUnit(unit string, start, end time.Time) int {
	d := end.Sub(start)
	switch unit {
	case "day":
		return int(d.Hours() / 24)
	case "hour":
		return int(d.Hours())
	case "minute":
		return int(d.Minutes())
	case "second":
		return int(d.Seconds())
	case "millisecond":
		return int(d.Milliseconds())
	case "week":
		return int(d.Hours() / (24 * 7))
	default:
		return int(d.Hours() / 24)
	}
}

func parseFlexibleDate(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999Z0700",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	var lastErr error
	for _, l := range layouts {
		t, err := time.Parse(l, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// strftime supports the subset of MongoDB's $dateToString format
// specifiers (spec.md §4.4) needed by the date operators above.
func strftime(format string, t time.Time) string {
	out := make([]byte, 0, len(format)+8)
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i == len(format)-1 {
			out = append(out, format[i])
			continue
		}
		i++
		switch format[i] {
		case 'Y':
			out = append(out, fmt.Sprintf("%04d", t.Year())...)
		case 'm':
			out = append(out, fmt.Sprintf("%02d", int(t.Month()))...)
		case 'd':
			out = append(out, fmt.Sprintf("%02d", t.Day())...)
		case 'H':
			out = append(out, fmt.Sprintf("%02d", t.Hour())...)
		case 'M':
			out = append(out, fmt.Sprintf("%02d", t.Minute())...)
		case 'S':
			out = append(out, fmt.Sprintf("%02d", t.Second())...)
		case 'L':
			out = append(out, fmt.Sprintf("%03d", t.Nanosecond()/1e6)...)
		case 'j':
			out = append(out, fmt.Sprintf("%03d", t.YearDay())...)
		case '%':
			out = append(out, '%')
		default:
			out = append(out, '%', format[i])
		}
	}
	return string(out)
}
