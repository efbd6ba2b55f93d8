package expr

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
)

// upperCaser/lowerCaser give $toUpper/$toLower Unicode-correct case folding
// (spec.md §3 "DOMAIN STACK" collation wiring) instead of a byte-for-byte
// strings.ToUpper/ToLower, while sort order itself stays plain binary
// comparison (internal/bsonval.Compare never consults these).
var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

func unaryString(name string, fn func(string) string) {
	register(name, func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, argCountErr(name, 1, len(nodes))
		}
		n := nodes[0]
		return func(ctx *Ctx) (interface{}, error) {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(v) {
				return nil, nil
			}
			s, err := asString(name, v)
			if err != nil {
				return nil, err
			}
			return fn(s), nil
		}, nil
	})
}

func init() {
	register("$concat", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			var b strings.Builder
			for _, n := range nodes {
				v, err := n(ctx)
				if err != nil {
					return nil, err
				}
				if bsonval.IsNullish(v) {
					return nil, nil
				}
				s, err := asString("$concat", v)
				if err != nil {
					return nil, err
				}
				b.WriteString(s)
			}
			return b.String(), nil
		}, nil
	})

	unaryString("$toLower", lowerCaser.String)
	unaryString("$toUpper", upperCaser.String)

	register("$strLenCP", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, argCountErr("$strLenCP", 1, len(nodes))
		}
		n := nodes[0]
		return func(ctx *Ctx) (interface{}, error) {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			s, err := asString("$strLenCP", v)
			if err != nil {
				return nil, err
			}
			return int32(len([]rune(s))), nil
		}, nil
	})

	substr := func(name string) {
		register(name, func(raw interface{}) (node, error) {
			nodes, err := compileArgList(raw)
			if err != nil {
				return nil, err
			}
			if len(nodes) != 3 {
				return nil, argCountErr(name, 3, len(nodes))
			}
			strN, startN, lenN := nodes[0], nodes[1], nodes[2]
			return func(ctx *Ctx) (interface{}, error) {
				sv, err := strN(ctx)
				if err != nil {
					return nil, err
				}
				s, err := asString(name, sv)
				if err != nil {
					return nil, err
				}
				startV, err := startN(ctx)
				if err != nil {
					return nil, err
				}
				lenV, err := lenN(ctx)
				if err != nil {
					return nil, err
				}
				start, _ := bsonval.AsFloat64(startV)
				length, _ := bsonval.AsFloat64(lenV)
				runes := []rune(s)
				st := int(start)
				if st < 0 {
					st = 0
				}
				if st > len(runes) {
					st = len(runes)
				}
				ln := int(length)
				if ln < 0 {
					ln = len(runes) - st
				}
				end := st + ln
				if end > len(runes) {
					end = len(runes)
				}
				if end < st {
					end = st
				}
				return string(runes[st:end]), nil
			}, nil
		})
	}
	substr("$substrCP")
	substr("$substr")

	register("$split", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, argCountErr("$split", 2, len(nodes))
		}
		strN, sepN := nodes[0], nodes[1]
		return func(ctx *Ctx) (interface{}, error) {
			sv, err := strN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(sv) {
				return nil, nil
			}
			s, err := asString("$split", sv)
			if err != nil {
				return nil, err
			}
			sepV, err := sepN(ctx)
			if err != nil {
				return nil, err
			}
			sep, err := asString("$split", sepV)
			if err != nil {
				return nil, err
			}
			parts := strings.Split(s, sep)
			out := make(primitive.A, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out, nil
		}, nil
	})

	trimFamily := func(name string, left, right bool) {
		register(name, func(raw interface{}) (node, error) {
			d, ok := rawDoc(raw)
			if !ok {
				return nil, dberr.BadValue("%s requires a document argument", name)
			}
			inputN, err := compileField(d, "input")
			if err != nil {
				return nil, err
			}
			var charsN node
			if cv, ok := docGet(d, "chars"); ok {
				charsN, err = compileNode(cv)
				if err != nil {
					return nil, err
				}
			}
			return func(ctx *Ctx) (interface{}, error) {
				iv, err := inputN(ctx)
				if err != nil {
					return nil, err
				}
				if bsonval.IsNullish(iv) {
					return nil, nil
				}
				s, err := asString(name, iv)
				if err != nil {
					return nil, err
				}
				cutset := " \t\n\v\f\r"
				if charsN != nil {
					cv, err := charsN(ctx)
					if err != nil {
						return nil, err
					}
					cutset, err = asString(name, cv)
					if err != nil {
						return nil, err
					}
				}
				switch {
				case left && right:
					return strings.Trim(s, cutset), nil
				case left:
					return strings.TrimLeft(s, cutset), nil
				default:
					return strings.TrimRight(s, cutset), nil
				}
			}, nil
		})
	}
	trimFamily("$trim", true, true)
	trimFamily("$ltrim", true, false)
	trimFamily("$rtrim", false, true)

	register("$regexMatch", regexOp(regexModeMatch))
	register("$regexFind", regexOp(regexModeFind))
	register("$regexFindAll", regexOp(regexModeFindAll))
}

const (
	regexModeMatch = iota
	regexModeFind
	regexModeFindAll
)

func regexOp(mode int) func(interface{}) (node, error) {
	return func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("regex operators require a document argument")
		}
		inputN, err := compileField(d, "input")
		if err != nil {
			return nil, err
		}
		regexRaw, _ := docGet(d, "regex")
		regexN, err := compileNode(regexRaw)
		if err != nil {
			return nil, err
		}
		var optsN node
		if ov, ok := docGet(d, "options"); ok {
			optsN, err = compileNode(ov)
			if err != nil {
				return nil, err
			}
		}
		return func(ctx *Ctx) (interface{}, error) {
			iv, err := inputN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(iv) {
				return nil, nil
			}
			s, err := asString("$regexMatch", iv)
			if err != nil {
				return nil, err
			}
			rv, err := regexN(ctx)
			if err != nil {
				return nil, err
			}
			var pattern, options string
			switch rt := rv.(type) {
			case primitive.Regex:
				pattern, options = rt.Pattern, rt.Options
			case string:
				pattern = rt
			default:
				return nil, dberr.BadValue("regex must be a string or regex literal")
			}
			if optsN != nil {
				ov, err := optsN(ctx)
				if err == nil {
					if os, ok := ov.(string); ok {
						options = os
					}
				}
			}
			goFlags := ""
			for _, o := range options {
				if o == 'i' || o == 'm' || o == 's' {
					goFlags += string(o)
				}
			}
			p := pattern
			if goFlags != "" {
				p = "(?" + goFlags + ")" + p
			}
			rx, err := regexp.Compile(p)
			if err != nil {
				return nil, dberr.BadValue("invalid regex: %v", err)
			}
			switch mode {
			case regexModeMatch:
				return rx.MatchString(s), nil
			case regexModeFind:
				loc := rx.FindStringIndex(s)
				if loc == nil {
					return nil, nil
				}
				return regexMatchDoc(rx, s, loc), nil
			default:
				locs := rx.FindAllStringIndex(s, -1)
				out := make(primitive.A, len(locs))
				for i, loc := range locs {
					out[i] = regexMatchDoc(rx, s, loc)
				}
				return out, nil
			}
		}, nil
	}
}

func regexMatchDoc(rx *regexp.Regexp, s string, loc []int) primitive.D {
	match := s[loc[0]:loc[1]]
	groups := rx.FindStringSubmatch(s[loc[0]:loc[1]])
	caps := make(primitive.A, 0)
	if len(groups) > 1 {
		for _, g := range groups[1:] {
			caps = append(caps, g)
		}
	}
	return primitive.D{
		{Key: "match", Value: match},
		{Key: "idx", Value: int32(len([]rune(s[:loc[0]])))},
		{Key: "captures", Value: caps},
	}
}

// rawDoc/docGet/compileField are small helpers for operators whose
// argument is itself a small options document ($trim, $regexMatch, $let).
func rawDoc(raw interface{}) (primitive.D, bool) {
	switch t := raw.(type) {
	case primitive.D:
		return t, true
	case primitive.M:
		return bsonval.ToDoc(t), true
	case map[string]interface{}:
		return bsonval.ToDoc(t), true
	}
	return nil, false
}

func docGet(d primitive.D, key string) (interface{}, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func compileField(d primitive.D, key string) (node, error) {
	v, ok := docGet(d, key)
	if !ok {
		return constNode(nil), nil
	}
	return compileNode(v)
}
