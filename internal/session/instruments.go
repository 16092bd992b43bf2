package session

import (
	"fmt"
	"strings"
	"unicode"
)

// Closes holds an instrument's day-session close and, when it trades at
// night, its night-session close.
type Closes struct {
	Day   string
	Night string // empty when there is no night session
}

// table maps product codes to session closes. Options share their
// underlying's hours and resolve through the base code.
var table = map[string]Closes{
	// SHFE / INE metals and energy
	"CU": {"15:00", "01:00"}, "AL": {"15:00", "01:00"}, "PB": {"15:00", "01:00"},
	"ZN": {"15:00", "01:00"}, "SN": {"15:00", "01:00"}, "NI": {"15:00", "01:00"},
	"SS": {"15:00", "01:00"}, "BC": {"15:00", "01:00"},
	"AU": {"15:00", "02:30"}, "AG": {"15:00", "02:30"}, "SC": {"15:00", "02:30"},
	"RB": {"15:00", "23:00"}, "HC": {"15:00", "23:00"}, "BU": {"15:00", "23:00"},
	"RU": {"15:00", "23:00"}, "FU": {"15:00", "23:00"}, "SP": {"15:00", "23:00"},
	"NR": {"15:00", "23:00"}, "LU": {"15:00", "23:00"},
	"WR": {"15:00", ""},
	// DCE
	"A": {"15:00", "23:00"}, "B": {"15:00", "23:00"}, "M": {"15:00", "23:00"},
	"Y": {"15:00", "23:00"}, "P": {"15:00", "23:00"}, "I": {"15:00", "23:00"},
	"J": {"15:00", "23:00"}, "JM": {"15:00", "23:00"}, "C": {"15:00", "23:00"},
	"CS": {"15:00", "23:00"}, "L": {"15:00", "23:00"}, "V": {"15:00", "23:00"},
	"PP": {"15:00", "23:00"}, "EG": {"15:00", "23:00"}, "RR": {"15:00", "23:00"},
	"EB": {"15:00", "23:00"}, "PG": {"15:00", "23:00"},
	"JD": {"15:00", ""}, "FB": {"15:00", ""}, "BB": {"15:00", ""}, "LH": {"15:00", ""},
	// CZCE
	"RM": {"15:00", "23:00"}, "OI": {"15:00", "23:00"}, "CF": {"15:00", "23:00"},
	"TA": {"15:00", "23:00"}, "SR": {"15:00", "23:00"}, "MA": {"15:00", "23:00"},
	"FG": {"15:00", "23:00"}, "ZC": {"15:00", "23:00"}, "CY": {"15:00", "23:00"},
	"SA": {"15:00", "23:00"}, "PF": {"15:00", "23:00"},
	"JR": {"15:00", ""}, "RS": {"15:00", ""}, "PM": {"15:00", ""}, "WH": {"15:00", ""},
	"RI": {"15:00", ""}, "LR": {"15:00", ""}, "SF": {"15:00", ""}, "SM": {"15:00", ""},
	"AP": {"15:00", ""}, "CJ": {"15:00", ""}, "UR": {"15:00", ""}, "PK": {"15:00", ""},
	"PX": {"15:00", ""}, "SH": {"15:00", ""},
	// CFFEX
	"IF": {"15:00", ""}, "IH": {"15:00", ""}, "IC": {"15:00", ""}, "IO": {"15:00", ""},
	"TF": {"15:15", ""}, "T": {"15:15", ""}, "TS": {"15:15", ""},
	// GFEX
	"SI": {"15:00", ""}, "LC": {"15:00", ""},
}

// ProductCode extracts the upper-case product prefix of a contract symbol,
// e.g. "rb2410" -> "RB", "SHFE.au2412" -> "AU", "m2409-C-3000" -> "M".
func ProductCode(symbol string) string {
	if i := strings.LastIndex(symbol, "."); i >= 0 {
		symbol = symbol[i+1:]
	}
	end := strings.IndexFunc(symbol, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(symbol)
	}
	return strings.ToUpper(symbol[:end])
}

// LookupCloses returns the session closes for a product code or contract symbol.
func LookupCloses(code string) (Closes, bool) {
	c, ok := table[ProductCode(code)]
	return c, ok
}

// ScheduleFor derives a per-instrument schedule from base: the afternoon
// window ends at the instrument's day close, the cutoff moves to five minutes
// before it, and the night windows are trimmed to the night close or dropped.
func ScheduleFor(symbol string, base Schedule) (Schedule, error) {
	closes, ok := LookupCloses(symbol)
	if !ok {
		return base, fmt.Errorf("no session table entry for %q", symbol)
	}
	dayClose, err := ParseClock(closes.Day)
	if err != nil {
		return base, err
	}

	out := base
	out.Cutoff = dayClose - 5
	out.EndOfDayBar = dayClose
	out.Windows = nil

	var nightClose Clock
	hasNight := closes.Night != ""
	if hasNight {
		if nightClose, err = ParseClock(closes.Night); err != nil {
			return base, err
		}
	}
	crossesMidnight := hasNight && nightClose < base.NightStart

	for _, w := range base.Windows {
		switch {
		case w.Start >= base.DayStart && w.Start < base.NightStart:
			if w.End >= base.EndOfDayBar || w.Contains(dayClose) {
				w.End = dayClose
			}
			out.Windows = append(out.Windows, w)
		case w.Start >= base.NightStart:
			if !hasNight {
				continue
			}
			if !crossesMidnight && nightClose < w.End {
				w.End = nightClose
			}
			out.Windows = append(out.Windows, w)
		default:
			if !crossesMidnight {
				continue
			}
			if nightClose < w.End {
				w.End = nightClose
			}
			out.Windows = append(out.Windows, w)
		}
	}

	switch {
	case crossesMidnight:
		out.NightEnd = nightClose
	default:
		out.NightEnd = 0
	}
	return out, nil
}
