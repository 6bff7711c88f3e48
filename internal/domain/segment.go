package domain

import "strings"

// Preferred-customer segment codes. MOU partner employees carry a
// composite "MOU-{code}" segment resolved against the EQ master table.
const (
	SegmentDoctor     = "DR"
	SegmentJudicial   = "JD"
	SegmentArtist     = "ART"
	SegmentYouth      = "YTH"
	SegmentMilitary   = "MIL"
	SegmentMOUPrefix  = "MOU-"
	SegmentMOUGeneric = "MOU"
)

// ValidSegmentCode accepts the fixed codes plus MOU-prefixed partner codes.
func ValidSegmentCode(code string) bool {
	switch code {
	case SegmentDoctor, SegmentJudicial, SegmentArtist, SegmentYouth, SegmentMilitary, SegmentMOUGeneric:
		return true
	}
	return strings.HasPrefix(code, SegmentMOUPrefix) && len(code) > len(SegmentMOUPrefix)
}

// IsMOUSegment reports whether the code names an MOU partnership.
func IsMOUSegment(code string) bool {
	return code == SegmentMOUGeneric || strings.HasPrefix(code, SegmentMOUPrefix)
}

// MOUPartnerCode extracts the partner code from "MOU-{code}" segments.
// Returns empty string for the bare MOU segment.
func MOUPartnerCode(code string) string {
	if strings.HasPrefix(code, SegmentMOUPrefix) {
		return code[len(SegmentMOUPrefix):]
	}
	return ""
}

// SegmentParamCode maps a segment code to its parameter-store key suffix.
// MOU-prefixed codes share the MOU benefit parameters.
func SegmentParamCode(code string) string {
	if IsMOUSegment(code) {
		return SegmentMOUGeneric
	}
	return code
}
